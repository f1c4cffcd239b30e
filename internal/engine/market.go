package engine

// market.go — immediate (market-style) execution.
//
// Queued orders go out in fixed-size batches; each batch's results are
// read independently so one bad batch never blocks the rest. Only orders
// the venue confirms contribute a signed delta to the cycle's
// effective-delta accumulator, which feeds the settlement tracker.

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// submitMarketQueue sends all queued immediate orders and returns the
// per-asset signed share delta of the accepted ones.
func (e *Engine) submitMarketQueue(ctx context.Context, queue []domain.OrderRequest, result *CycleResult) map[string]float64 {
	delta := make(map[string]float64)

	for start := 0; start < len(queue); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(queue))
		batch := queue[start:end]
		result.MarketSubmitted += len(batch)

		results, err := e.executor.SubmitMarketOrders(ctx, batch)
		if err != nil {
			slog.Warn("engine: market batch failed", "batch_size", len(batch), "err", err)
			result.Errors++
			continue
		}

		for _, res := range results {
			e.auditSubmission(ctx, res, domain.StyleMarket)

			if !res.Success {
				slog.Warn("engine: market order rejected",
					"asset", res.Request.AssetID,
					"side", res.Request.Side,
					"err", res.Error)
				e.recorder.RecordOrderRejected("market")
				continue
			}

			e.recorder.RecordOrderPlaced("market", string(res.Request.Side))
			result.MarketAccepted++

			if res.Request.Side == domain.SideBuy {
				delta[res.Request.AssetID] += res.Request.Size
			} else {
				delta[res.Request.AssetID] -= res.Request.Size
			}
		}
	}

	return delta
}

// auditSubmission writes one submission row; failures never abort a cycle.
func (e *Engine) auditSubmission(ctx context.Context, res domain.SubmitResult, style domain.ExecStyle) {
	if e.audit == nil {
		return
	}
	sub := domain.SubmissionAudit{
		ID:        uuid.New().String(),
		OrderID:   res.OrderID,
		AssetID:   res.Request.AssetID,
		Side:      res.Request.Side,
		Style:     style,
		Price:     res.Request.Price,
		Size:      res.Request.Size,
		Success:   res.Success,
		Error:     res.Error,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.audit.SaveSubmission(ctx, sub); err != nil {
		slog.Warn("engine: submission audit write failed", "err", err)
	}
}
