package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// settlementEntry is the expected position for an asset whose last submitted
// trade has not yet shown up in a fresh snapshot.
type settlementEntry struct {
	ExpectedTarget float64   `json:"expected_target"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// settlementTracker blocks re-evaluation of assets until the live snapshot
// reflects the trade we already submitted. Entries are removed only on an
// epsilon match, never by timeout: the wait is unbounded by design, but
// long-stuck entries get a warning so they are visible.
type settlementTracker struct {
	entries       map[string]settlementEntry
	warnAfter     time.Duration
	warnedAlready map[string]bool
}

func newSettlementTracker(warnAfter time.Duration) *settlementTracker {
	return &settlementTracker{
		entries:       make(map[string]settlementEntry),
		warnAfter:     warnAfter,
		warnedAlready: make(map[string]bool),
	}
}

// Record registers the expected target for an asset after a trade was
// accepted. An asset appears at most once; a newer trade overwrites.
func (t *settlementTracker) Record(assetID string, expectedTarget float64, now time.Time) {
	t.entries[assetID] = settlementEntry{ExpectedTarget: expectedTarget, RecordedAt: now}
	delete(t.warnedAlready, assetID)
}

// Advance removes every entry whose live position now matches its expected
// target within SyncEpsilon, and returns how many remain pending.
func (t *settlementTracker) Advance(snapshot domain.PositionSnapshot, now time.Time) int {
	for asset, entry := range t.entries {
		if math.Abs(snapshot.Get(asset)-entry.ExpectedTarget) <= domain.SyncEpsilon {
			delete(t.entries, asset)
			delete(t.warnedAlready, asset)
			continue
		}
		if t.warnAfter > 0 && now.Sub(entry.RecordedAt) > t.warnAfter && !t.warnedAlready[asset] {
			slog.Warn("settlement: asset pending for a long time",
				"asset", asset,
				"expected", entry.ExpectedTarget,
				"current", snapshot.Get(asset),
				"since", entry.RecordedAt.Format(time.RFC3339))
			t.warnedAlready[asset] = true
		}
	}
	return len(t.entries)
}

// Blocked reports whether the asset is still waiting for settlement.
func (t *settlementTracker) Blocked(assetID string) bool {
	_, ok := t.entries[assetID]
	return ok
}

// Len returns how many assets are currently blocked.
func (t *settlementTracker) Len() int {
	return len(t.entries)
}
