package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polysync/config"
	"github.com/alejandrodnm/polysync/internal/adapters/state"
	"github.com/alejandrodnm/polysync/internal/adapters/storage"
)

// runReport prints the persisted deferred state and the recent cycle
// history without touching the venue.
func runReport(cfg *config.Config) {
	stateStore, err := state.NewFileStore(cfg.Storage.StatePath)
	if err != nil {
		slog.Error("failed to open state store", "err", err)
		os.Exit(1)
	}
	states, err := stateStore.Load()
	if err != nil {
		slog.Error("failed to load state", "err", err)
		os.Exit(1)
	}

	fmt.Printf("\n── DEFERRED STATE (%d assets) ──\n", len(states))
	if len(states) > 0 {
		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.Header("Asset", "Side", "Size", "Anchor", "Price", "Order", "Cutoff", "Age")
		for _, st := range states {
			cutoff := "-"
			if st.Cutoff != nil {
				cutoff = st.Cutoff.Format("01-02 15:04")
			}
			orderID := st.OrderID
			if len(orderID) > 12 {
				orderID = orderID[:12] + "..."
			}
			tbl.Append(
				shorten(st.AssetID, 16),
				string(st.Side),
				fmt.Sprintf("%.1f", st.DesiredSize),
				fmt.Sprintf("%.1f", st.BasePosition),
				fmt.Sprintf("%.2f", st.LastPrice),
				orderID,
				cutoff,
				time.Since(st.AnchoredAt).Truncate(time.Minute).String(),
			)
		}
		tbl.Render()
	} else {
		fmt.Println("  (none)")
	}

	audit, err := storage.NewSQLiteStorage(cfg.Storage.AuditDSN)
	if err != nil {
		slog.Error("failed to open audit storage", "err", err)
		os.Exit(1)
	}
	defer audit.Close()

	cycles, err := audit.GetRecentCycles(context.Background(), 20)
	if err != nil {
		slog.Error("failed to read cycles", "err", err)
		os.Exit(1)
	}

	fmt.Printf("\n── RECENT CYCLES (%d) ──\n", len(cycles))
	if len(cycles) > 0 {
		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.Header("At", "Snap", "Intents", "Pending", "Deferred", "Placed", "Cancelled", "Market", "Errs", "Dur")
		for _, c := range cycles {
			tbl.Append(
				c.RanAt.Format("01-02 15:04:05"),
				fmt.Sprintf("%d", c.SnapshotAssets),
				fmt.Sprintf("%d", c.Intents),
				fmt.Sprintf("%d", c.PendingAssets),
				fmt.Sprintf("%d", c.DeferredEntries),
				fmt.Sprintf("%d", c.OrdersPlaced),
				fmt.Sprintf("%d", c.OrdersCancelled),
				fmt.Sprintf("%d", c.MarketSubmitted),
				fmt.Sprintf("%d", c.Errors),
				c.Duration.Truncate(time.Millisecond).String(),
			)
		}
		tbl.Render()
	} else {
		fmt.Println("  (none)")
	}
	fmt.Println()
}

func shorten(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
