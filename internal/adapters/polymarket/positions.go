package polymarket

// positions.go — owner position ledger via the Polymarket Data API.
//
// FetchPositions never fails: the reconciler treats "no data this cycle"
// as zero progress, which only delays convergence. An incorrect trade can
// never come out of a missing snapshot.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// dataPosition is one row of GET /positions.
type dataPosition struct {
	Asset string   `json:"asset"`
	Size  *float64 `json:"size"`
}

// FetchPositions returns the owner's held shares per asset.
// Duplicate rows for the same asset are summed. Any transport or parse
// error yields an empty snapshot.
func (c *Client) FetchPositions(ctx context.Context, owner string) domain.PositionSnapshot {
	q := url.Values{}
	q.Set("user", owner)
	q.Set("limit", "1000")
	q.Set("sizeThreshold", "1")
	q.Set("redeemable", "false")
	reqURL := fmt.Sprintf("%s/positions?%s", c.dataBase, q.Encode())

	var rows []dataPosition
	if err := c.get(ctx, c.dataLimiter, reqURL, &rows); err != nil {
		slog.Warn("positions: fetch failed, assuming empty snapshot", "err", err)
		return domain.PositionSnapshot{}
	}

	snapshot := make(domain.PositionSnapshot, len(rows))
	for _, p := range rows {
		if p.Asset == "" || p.Size == nil {
			continue
		}
		snapshot[p.Asset] += *p.Size
	}
	return snapshot
}
