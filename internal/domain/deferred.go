package domain

import "time"

// DeferredOrderState is the persisted entry for one asset under an active
// limit-style intent. BasePosition anchors progress measurement: it is the
// snapshot taken when the intent was (re)established, so pre-existing
// holdings never count toward the desired size.
type DeferredOrderState struct {
	AssetID      string     `json:"asset_id"`
	OrderID      string     `json:"order_id,omitempty"`
	Side         Side       `json:"side"`
	DesiredSize  float64    `json:"desired_size"`
	BasePosition float64    `json:"base_position"`
	LastPrice    float64    `json:"last_limit_price"`
	Cutoff       *time.Time `json:"cutoff_ts,omitempty"`
	AnchoredAt   time.Time  `json:"anchored_at"`
}

// NewDeferredState anchors a fresh entry to the current snapshot value.
func NewDeferredState(in DesiredIntent, snapshotSize float64, now time.Time) DeferredOrderState {
	return DeferredOrderState{
		AssetID:      in.AssetID,
		Side:         in.Side,
		DesiredSize:  in.Size,
		BasePosition: snapshotSize,
		LastPrice:    in.LimitPrice,
		Cutoff:       in.Cutoff,
		AnchoredAt:   now,
	}
}

// Progress is the realized movement since anchoring, clamped non-negative.
// For BUY it is how much the position grew over the anchor; for SELL how
// much it shrank under it.
func (d DeferredOrderState) Progress(snapshotSize float64) float64 {
	var p float64
	if d.Side == SideBuy {
		p = snapshotSize - d.BasePosition
	} else {
		p = d.BasePosition - snapshotSize
	}
	if p < 0 {
		return 0
	}
	return p
}

// Remaining is the share count still to execute given the latest snapshot.
func (d DeferredOrderState) Remaining(snapshotSize float64) float64 {
	return d.DesiredSize - d.Progress(snapshotSize)
}

// Satisfied reports whether the realized movement meets the desired size.
func (d DeferredOrderState) Satisfied(snapshotSize float64) bool {
	return d.Remaining(snapshotSize) <= 0
}

// MatchesIntent reports whether the intent's parameters are still the ones
// this entry was anchored for. A side flip, a size change of SizeEpsilon or
// more, or a different cutoff is a material change and forces a reset.
func (d DeferredOrderState) MatchesIntent(in DesiredIntent) bool {
	return d.Side == in.Side &&
		SizesMatch(d.DesiredSize, in.Size) &&
		SameCutoff(d.Cutoff, in.Cutoff)
}
