// Package engine implements the position reconciler: every cycle it pulls
// the owner's on-venue positions and the copy feed's desired trades, then
// drives the actual position toward the target through resting limit
// orders (deferred intents) or short-expiry market-style orders (immediate
// intents), surviving restarts via a persisted per-asset state map.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/polysync/internal/domain"
	"github.com/alejandrodnm/polysync/internal/metrics"
	"github.com/alejandrodnm/polysync/internal/ports"
)

const (
	defaultInterval     = 15 * time.Second
	defaultMarketExpiry = 70 * time.Second
	defaultBatchSize    = 5
	defaultWarnAfter    = 10 * time.Minute
)

// Config holds reconciler configuration.
type Config struct {
	Owner          string        // funder address whose positions we track
	Interval       time.Duration // cycle cadence
	MarketExpiry   time.Duration // GTD expiry for immediate orders
	BatchSize      int           // orders per submission batch
	StaleWarnAfter time.Duration // warn when settlement takes this long
}

// CycleResult summarizes what one reconciliation cycle did.
type CycleResult struct {
	SnapshotAssets  int
	Intents         int
	PendingAssets   int
	DeferredEntries int
	OrdersPlaced    int
	OrdersCancelled int
	MarketSubmitted int
	MarketAccepted  int
	Errors          int
	Skipped         bool
}

// Engine owns all mutable reconciler state: the persisted deferred-order
// map and the in-memory settlement tracker. One cycle runs to completion
// before the next begins; nothing here is shared across goroutines.
type Engine struct {
	cfg       Config
	positions ports.PositionProvider
	feed      ports.IntentProvider
	executor  ports.OrderExecutor
	store     ports.StateStore
	audit     ports.AuditStore
	recorder  *metrics.Recorder

	states map[string]domain.DeferredOrderState
	settle *settlementTracker
}

// New creates an Engine with all dependencies injected. audit may be nil.
func New(
	cfg Config,
	positions ports.PositionProvider,
	feed ports.IntentProvider,
	executor ports.OrderExecutor,
	store ports.StateStore,
	audit ports.AuditStore,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MarketExpiry <= 0 {
		cfg.MarketExpiry = defaultMarketExpiry
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.StaleWarnAfter <= 0 {
		cfg.StaleWarnAfter = defaultWarnAfter
	}

	return &Engine{
		cfg:       cfg,
		positions: positions,
		feed:      feed,
		executor:  executor,
		store:     store,
		audit:     audit,
		recorder:  metrics.NewRecorder(),
		states:    make(map[string]domain.DeferredOrderState),
		settle:    newSettlementTracker(cfg.StaleWarnAfter),
	}
}

// RestoreState loads the persisted deferred-order map. Call once before Run.
func (e *Engine) RestoreState() error {
	states, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("engine.RestoreState: %w", err)
	}
	e.states = states
	if len(states) > 0 {
		slog.Info("engine: restored deferred state", "entries", len(states))
	}
	return nil
}

// stopFile shuts the loop down when it appears next to the process.
// Handy when a signal can't reach the process (e.g. detached sessions).
const stopFile = "STOP"

// Run executes reconciliation cycles until the context is cancelled or the
// stop file shows up, then flushes state one last time. A failed cycle is
// logged and the loop keeps going: a bad cycle degrades to a no-op, never
// a crash.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting — press Ctrl+C or create STOP file to exit",
		"owner", e.cfg.Owner,
		"interval", e.cfg.Interval,
		"deferred_entries", len(e.states),
	)

	e.runCycle(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.flush("signal")
		case <-ticker.C:
			if _, err := os.Stat(stopFile); err == nil {
				os.Remove(stopFile)
				return e.flush("STOP file")
			}
			e.runCycle(ctx)
		}
	}
}

func (e *Engine) flush(reason string) error {
	if err := e.store.Save(e.states); err != nil {
		slog.Error("engine: final state flush failed", "err", err)
		return err
	}
	slog.Info("engine stopped, state flushed", "reason", reason, "deferred_entries", len(e.states))
	return nil
}

// runCycle wraps RunOnce with logging, metrics, and audit persistence.
func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()

	result, err := e.RunOnce(ctx)
	dur := time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		slog.Error("engine: cycle failed", "err", err, "duration", dur.Truncate(time.Millisecond))
	case result.Skipped:
		outcome = "skipped"
		slog.Info("engine: cycle skipped (no intent data)")
	default:
		slog.Info("engine: cycle complete",
			"duration", dur.Truncate(time.Millisecond),
			"snapshot_assets", result.SnapshotAssets,
			"intents", result.Intents,
			"pending", result.PendingAssets,
			"deferred", result.DeferredEntries,
			"placed", result.OrdersPlaced,
			"cancelled", result.OrdersCancelled,
			"market_submitted", result.MarketSubmitted,
			"market_accepted", result.MarketAccepted,
			"errors", result.Errors,
		)
	}
	e.recorder.RecordCycle(outcome, dur)

	if e.audit != nil && outcome != "skipped" {
		audit := domain.CycleAudit{
			RanAt:           start.UTC(),
			SnapshotAssets:  result.SnapshotAssets,
			Intents:         result.Intents,
			PendingAssets:   result.PendingAssets,
			DeferredEntries: result.DeferredEntries,
			OrdersPlaced:    result.OrdersPlaced,
			OrdersCancelled: result.OrdersCancelled,
			MarketSubmitted: result.MarketSubmitted,
			Errors:          result.Errors,
		}
		audit.Duration = dur
		if err := e.audit.SaveCycle(ctx, audit); err != nil {
			slog.Warn("engine: audit write failed", "err", err)
		}
	}
}

// RunOnce executes exactly one reconciliation cycle:
//
//	snapshot → settle pending → fetch intents → withdrawn cleanup →
//	deferred pass → escalation/immediate pass → record pending → persist.
//
// One consistent snapshot is used for the whole cycle. The settlement check
// runs first and suppresses every further action for blocked assets.
func (e *Engine) RunOnce(ctx context.Context) (CycleResult, error) {
	now := time.Now().UTC()
	result := CycleResult{}

	snapshot := e.positions.FetchPositions(ctx, e.cfg.Owner)
	result.SnapshotAssets = len(snapshot)

	result.PendingAssets = e.settle.Advance(snapshot, now)

	intents, err := e.feed.FetchIntents(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoIntentData) {
			result.Skipped = true
			return result, nil
		}
		return result, fmt.Errorf("engine.RunOnce: fetch intents: %w", err)
	}
	result.Intents = len(intents)

	byAsset := indexIntents(intents)

	e.cleanupWithdrawn(ctx, byAsset, &result)

	var marketQueue []domain.OrderRequest
	for _, in := range intents {
		if e.settle.Blocked(in.AssetID) {
			continue
		}

		if in.Style == domain.StyleLimit && !in.CutoffPassed(now) {
			e.reconcileDeferred(ctx, in, snapshot, now, &result)
			continue
		}

		// MARKET style, or a LIMIT intent past its cutoff: escalate.
		if req, ok := e.escalate(ctx, in, snapshot, now, &result); ok {
			marketQueue = append(marketQueue, req)
		}
	}

	delta := e.submitMarketQueue(ctx, marketQueue, &result)

	if len(delta) > 0 {
		targets := snapshot.ApplyDelta(delta)
		for asset := range delta {
			e.settle.Record(asset, targets.Get(asset), now)
		}
	}

	result.PendingAssets = e.settle.Len()
	result.DeferredEntries = len(e.states)
	e.recorder.RecordTrackerSizes(result.PendingAssets, result.DeferredEntries)

	if err := e.store.Save(e.states); err != nil {
		return result, fmt.Errorf("engine.RunOnce: persist state: %w", err)
	}
	return result, nil
}

// indexIntents maps intents by asset. The feed should emit one row per
// asset; on duplicates the first row wins and the rest are dropped.
func indexIntents(intents []domain.DesiredIntent) map[string]domain.DesiredIntent {
	byAsset := make(map[string]domain.DesiredIntent, len(intents))
	for _, in := range intents {
		if _, dup := byAsset[in.AssetID]; dup {
			slog.Warn("engine: duplicate intent for asset, keeping first", "asset", in.AssetID)
			continue
		}
		byAsset[in.AssetID] = in
	}
	return byAsset
}

// cleanupWithdrawn destroys state for assets the feed no longer mentions:
// the provider withdrew the copy instruction, so any resting orders go too.
func (e *Engine) cleanupWithdrawn(ctx context.Context, byAsset map[string]domain.DesiredIntent, result *CycleResult) {
	for asset, st := range e.states {
		if _, ok := byAsset[asset]; ok {
			continue
		}
		slog.Info("engine: intent withdrawn, dropping deferred state", "asset", asset, "order_id", st.OrderID)
		e.cancelAllForAsset(ctx, asset, result)
		delete(e.states, asset)
	}
}

// cancelAllForAsset best-effort cancels every open order for an asset.
// Failures are logged; the next cycle's reconciliation repairs leftovers.
func (e *Engine) cancelAllForAsset(ctx context.Context, assetID string, result *CycleResult) {
	open, err := e.executor.ListOpenOrders(ctx, assetID)
	if err != nil {
		slog.Warn("engine: list open orders failed", "asset", assetID, "err", err)
		result.Errors++
		return
	}
	if len(open) == 0 {
		return
	}

	ids := make([]string, 0, len(open))
	for _, o := range open {
		ids = append(ids, o.OrderID)
	}
	e.cancelMany(ctx, ids, result)
}

// cancelMany cancels a batch of orders, swallowing failures.
func (e *Engine) cancelMany(ctx context.Context, ids []string, result *CycleResult) {
	if len(ids) == 0 {
		return
	}
	if err := e.executor.CancelOrders(ctx, ids); err != nil {
		slog.Warn("engine: bulk cancel failed", "count", len(ids), "err", err)
		e.recorder.RecordCancel(false)
		result.Errors++
		return
	}
	e.recorder.RecordCancel(true)
	result.OrdersCancelled += len(ids)
}

// cancelOne cancels a single order, swallowing failures.
func (e *Engine) cancelOne(ctx context.Context, orderID string, result *CycleResult) {
	if orderID == "" {
		return
	}
	if err := e.executor.CancelOrder(ctx, orderID); err != nil {
		slog.Warn("engine: cancel failed", "order_id", orderID, "err", err)
		e.recorder.RecordCancel(false)
		result.Errors++
		return
	}
	e.recorder.RecordCancel(true)
	result.OrdersCancelled++
}
