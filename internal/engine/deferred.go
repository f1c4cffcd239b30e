package engine

// deferred.go — the deferred-execution state machine.
//
// One persisted entry per asset with an open limit intent. Each cycle the
// entry is re-anchored on material intent changes, destroyed once realized
// progress covers the desired size, and otherwise its resting order is
// repaired: wrong-side and duplicate orders cancelled, dead orders
// replaced, size/price drift corrected. Intents past their cutoff (or
// flipped to MARKET by the provider) escalate to immediate execution.

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// reconcileDeferred advances one limit-style intent through the machine.
func (e *Engine) reconcileDeferred(ctx context.Context, in domain.DesiredIntent, snapshot domain.PositionSnapshot, now time.Time, result *CycleResult) {
	snap := snapshot.Get(in.AssetID)

	st, ok := e.states[in.AssetID]
	if !ok || !st.MatchesIntent(in) {
		if ok {
			slog.Info("engine: intent changed materially, re-anchoring",
				"asset", in.AssetID,
				"old_side", st.Side, "new_side", in.Side,
				"old_size", st.DesiredSize, "new_size", in.Size)
		}
		// Any resting order predates this intent and is stale.
		e.cancelAllForAsset(ctx, in.AssetID, result)
		st = domain.NewDeferredState(in, snap, now)
		e.states[in.AssetID] = st
	}

	if st.Satisfied(snap) {
		slog.Info("engine: deferred intent satisfied",
			"asset", in.AssetID, "side", st.Side,
			"desired", st.DesiredSize, "progress", st.Progress(snap))
		e.cancelAllForAsset(ctx, in.AssetID, result)
		delete(e.states, in.AssetID)
		return
	}

	e.repairRestingOrder(ctx, in, st, snap, result)
}

// repairRestingOrder brings the asset's book state in line with the entry:
// exactly one live same-side order of the right size and price.
func (e *Engine) repairRestingOrder(ctx context.Context, in domain.DesiredIntent, st domain.DeferredOrderState, snap float64, result *CycleResult) {
	open, err := e.executor.ListOpenOrders(ctx, in.AssetID)
	if err != nil {
		// No book view this cycle; leave the entry as is and retry next time.
		slog.Warn("engine: list open orders failed, skipping repair", "asset", in.AssetID, "err", err)
		result.Errors++
		return
	}

	kept := e.pruneOpenOrders(ctx, st, open, result)

	desired := st.Remaining(snap)

	sizeMismatch := kept == nil || math.Abs(kept.Remaining()-desired) >= domain.SizeEpsilon
	priceMismatch := kept == nil || !domain.PricesMatch(kept.Price, in.LimitPrice)

	if !sizeMismatch && !priceMismatch {
		// Resting order is fine; touching it would only lose queue position.
		st.OrderID = kept.OrderID
		st.LastPrice = kept.Price
		e.states[in.AssetID] = st
		return
	}

	if kept != nil {
		e.cancelOne(ctx, kept.OrderID, result)
	}

	req := domain.OrderRequest{
		AssetID:  in.AssetID,
		Side:     st.Side,
		Price:    in.LimitPrice,
		Size:     desired,
		PostOnly: true,
	}
	placed, err := e.executor.PlaceLimitOrder(ctx, req)
	e.auditSubmission(ctx, domain.SubmitResult{
		Request: req,
		OrderID: placed.OrderID,
		Success: err == nil,
		Error:   errString(err),
	}, domain.StyleLimit)
	if err != nil {
		slog.Warn("engine: limit placement failed", "asset", in.AssetID, "err", err)
		e.recorder.RecordOrderRejected("limit")
		result.Errors++
		st.OrderID = ""
		e.states[in.AssetID] = st
		return
	}

	slog.Info("engine: placed resting limit order",
		"asset", in.AssetID, "side", st.Side,
		"size", desired, "price", in.LimitPrice,
		"order_id", placed.OrderID)
	e.recorder.RecordOrderPlaced("limit", string(st.Side))
	result.OrdersPlaced++

	st.OrderID = placed.OrderID
	st.LastPrice = in.LimitPrice
	e.states[in.AssetID] = st
}

// pruneOpenOrders cancels wrong-side and duplicate orders, keeping only the
// newest same-side one. Wrong-side orders should not normally exist; they
// show up after a crash or manual intervention and must go. Returns nil
// when no live order survives.
func (e *Engine) pruneOpenOrders(ctx context.Context, st domain.DeferredOrderState, open []domain.OpenOrder, result *CycleResult) *domain.OpenOrder {
	var kept *domain.OpenOrder
	var stale []string

	for i := range open {
		o := open[i]
		if o.Side != st.Side {
			stale = append(stale, o.OrderID)
			continue
		}
		if kept == nil || o.CreatedAt.After(kept.CreatedAt) {
			if kept != nil {
				stale = append(stale, kept.OrderID)
			}
			kept = &open[i]
			continue
		}
		stale = append(stale, o.OrderID)
	}

	e.cancelMany(ctx, stale, result)

	if kept != nil && !kept.IsLive() {
		// Terminal status on the books: treat as absent so it gets replaced.
		kept = nil
	}
	return kept
}

// escalate converts a deferred entry (cutoff passed, or the provider
// flipped the intent to MARKET) into one immediate order request. The
// deferred entry is destroyed regardless of what happens to the order:
// from here on the pending-settlement tracker owns the asset.
func (e *Engine) escalate(ctx context.Context, in domain.DesiredIntent, snapshot domain.PositionSnapshot, now time.Time, result *CycleResult) (domain.OrderRequest, bool) {
	snap := snapshot.Get(in.AssetID)
	anchor := snap

	// A resting order must never survive into immediate execution, even
	// when no entry tracks it (lost state file, order predating the
	// intent): it would fill alongside the market order.
	e.cancelAllForAsset(ctx, in.AssetID, result)

	if st, ok := e.states[in.AssetID]; ok {
		if st.Side == in.Side && domain.SizesMatch(st.DesiredSize, in.Size) {
			// Same intent: keep the anchor so limit-phase fills are not
			// bought twice.
			anchor = st.BasePosition
		}
		delete(e.states, in.AssetID)
		slog.Info("engine: escalating deferred intent to market",
			"asset", in.AssetID, "side", in.Side,
			"anchor", anchor, "snapshot", snap)
	}

	progress := snap - anchor
	if in.Side == domain.SideSell {
		progress = anchor - snap
	}
	if progress < 0 {
		progress = 0
	}

	remaining := in.Size - progress
	if remaining < domain.SizeEpsilon {
		return domain.OrderRequest{}, false
	}

	expiry := now.Add(e.cfg.MarketExpiry)
	return domain.OrderRequest{
		AssetID: in.AssetID,
		Side:    in.Side,
		Price:   in.TargetPrice,
		Size:    remaining,
		Expiry:  &expiry,
	}, true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
