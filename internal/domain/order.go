package domain

import (
	"strings"
	"time"
)

// OrderRequest is what the engine asks the venue adapter to place.
// Size is in shares; Price in USDC per share.
type OrderRequest struct {
	AssetID  string
	Side     Side
	Price    float64
	Size     float64
	Expiry   *time.Time // nil for resting limit orders
	PostOnly bool
}

// PlacedOrder is the venue's acknowledgement of a single placement.
type PlacedOrder struct {
	OrderID string
	Status  string
}

// SubmitResult is one element of a batch submission response. Failed
// entries carry the venue's error message; the batch itself still succeeds.
type SubmitResult struct {
	Request OrderRequest
	OrderID string
	Success bool
	Error   string
}

// OpenOrder is the canonical view of an order on the venue's book,
// normalized from whatever shape the lookup endpoint returned.
type OpenOrder struct {
	OrderID      string
	AssetID      string
	Side         Side
	Price        float64
	OriginalSize float64
	FilledSize   float64
	Status       string
	CreatedAt    time.Time
}

// Remaining returns the unfilled share count, clamped at zero.
func (o OpenOrder) Remaining() float64 {
	rem := o.OriginalSize - o.FilledSize
	if rem < 0 {
		return 0
	}
	return rem
}

// liveStatuses are the venue states in which an order can still fill.
// Anything else is terminal and the order is treated as absent.
var liveStatuses = map[string]bool{
	"live":      true,
	"open":      true,
	"pending":   true,
	"delayed":   true,
	"unmatched": true,
}

// IsLive reports whether the order can still fill. Unknown statuses count
// as terminal so a weird venue state triggers replacement, not a hang.
func (o OpenOrder) IsLive() bool {
	return liveStatuses[strings.ToLower(o.Status)]
}
