package domain

// PositionSnapshot maps asset ID → held shares at a point in time.
// Superseded every cycle; never mutated after fetch.
type PositionSnapshot map[string]float64

// Get returns the held size for an asset, zero if absent.
func (ps PositionSnapshot) Get(assetID string) float64 {
	return ps[assetID]
}

// ApplyDelta returns a copy of the snapshot with signed deltas applied.
// Results are clamped at zero: a negative computed holding is an API or
// ordering anomaly, never a real short.
func (ps PositionSnapshot) ApplyDelta(delta map[string]float64) PositionSnapshot {
	out := make(PositionSnapshot, len(ps)+len(delta))
	for asset, size := range ps {
		out[asset] = size
	}
	for asset, d := range delta {
		v := out[asset] + d
		if v < 0 {
			v = 0
		}
		out[asset] = v
	}
	return out
}
