package domain

import (
	"errors"
	"math"
	"time"
)

// Numeric tolerances used across the reconciler. Sizes are compared with an
// absolute epsilon because copy sizes are small share counts; prices with a
// tick-sized epsilon.
const (
	// SyncEpsilon is the max distance (in shares) between a live snapshot
	// and an expected target for the asset to count as settled.
	SyncEpsilon = 4.99

	// SizeEpsilon is the minimum share difference that counts as a real
	// size change (resize, reset, escalation carry-over).
	SizeEpsilon = 0.5

	// PriceEpsilon is one price tick. Differences below it never trigger
	// a replace, to avoid losing queue position for nothing.
	PriceEpsilon = 0.01
)

// ErrNoIntentData signals that the copy feed returned no body at all.
// Distinct from an empty intent list: no body means skip the cycle,
// an empty list means there is nothing to copy but cleanup still runs.
var ErrNoIntentData = errors.New("copy feed returned no data")

// Side is the direction of a desired trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of BUY/SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ExecStyle is how the copy feed wants an intent executed.
type ExecStyle string

const (
	// StyleLimit rests a post-only limit order until the cutoff.
	StyleLimit ExecStyle = "LIMIT"
	// StyleMarket submits immediately with a short expiry.
	StyleMarket ExecStyle = "MARKET"
)

// DesiredIntent is one row from the copy feed: move this asset's position
// by Size shares in direction Side, using Style, before Cutoff (if set).
type DesiredIntent struct {
	AssetID     string
	Side        Side
	Size        float64
	TargetPrice float64
	LimitPrice  float64
	Style       ExecStyle
	Cutoff      *time.Time
}

// Valid reports whether the intent is well-formed enough to act on.
// Malformed rows are skipped, never fatal.
func (in DesiredIntent) Valid() bool {
	return in.AssetID != "" && in.Side.Valid() && in.Size > 0
}

// CutoffPassed reports whether the intent's cutoff exists and is behind now.
func (in DesiredIntent) CutoffPassed(now time.Time) bool {
	return in.Cutoff != nil && !now.Before(*in.Cutoff)
}

// SameCutoff compares two optional cutoffs for equality.
func SameCutoff(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// SizesMatch reports whether two share sizes are equal within SizeEpsilon.
func SizesMatch(a, b float64) bool {
	return math.Abs(a-b) < SizeEpsilon
}

// PricesMatch reports whether two prices are within one tick of each other.
func PricesMatch(a, b float64) bool {
	return math.Abs(a-b) < PriceEpsilon
}
