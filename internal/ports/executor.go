package ports

import (
	"context"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// OrderExecutor places, cancels, and looks up real orders on Polymarket CLOB.
// Cancels are best-effort: the engine logs failures and relies on the next
// cycle's reconciliation to repair stale book state.
type OrderExecutor interface {
	// PlaceLimitOrder signs and submits a single post-only limit order.
	PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error)

	// SubmitMarketOrders signs and submits one batch of short-expiry orders.
	// Results are per-order; a rejected order does not fail the batch.
	SubmitMarketOrders(ctx context.Context, reqs []domain.OrderRequest) ([]domain.SubmitResult, error)

	// CancelOrder cancels a specific order by its CLOB order ID.
	CancelOrder(ctx context.Context, orderID string) error

	// CancelOrders cancels several orders in one call.
	CancelOrders(ctx context.Context, orderIDs []string) error

	// GetOrder returns the normalized state of one order.
	GetOrder(ctx context.Context, orderID string) (domain.OpenOrder, error)

	// ListOpenOrders returns the wallet's open orders for one asset.
	ListOpenOrders(ctx context.Context, assetID string) ([]domain.OpenOrder, error)
}
