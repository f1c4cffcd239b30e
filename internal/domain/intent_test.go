package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDesiredIntent_Valid(t *testing.T) {
	in := DesiredIntent{AssetID: "a", Side: SideBuy, Size: 10}
	assert.True(t, in.Valid())

	assert.False(t, DesiredIntent{Side: SideBuy, Size: 10}.Valid())
	assert.False(t, DesiredIntent{AssetID: "a", Side: "HOLD", Size: 10}.Valid())
	assert.False(t, DesiredIntent{AssetID: "a", Side: SideSell, Size: 0}.Valid())
	assert.False(t, DesiredIntent{AssetID: "a", Side: SideSell, Size: -5}.Valid())
}

func TestCutoffPassed(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, DesiredIntent{}.CutoffPassed(now))
	assert.True(t, DesiredIntent{Cutoff: &past}.CutoffPassed(now))
	assert.True(t, DesiredIntent{Cutoff: &now}.CutoffPassed(now))
	assert.False(t, DesiredIntent{Cutoff: &future}.CutoffPassed(now))
}

func TestSizesMatch(t *testing.T) {
	assert.True(t, SizesMatch(100, 100))
	assert.True(t, SizesMatch(100, 100.49))
	assert.False(t, SizesMatch(100, 100.5))
	assert.False(t, SizesMatch(100, 110))
}

func TestPricesMatch(t *testing.T) {
	assert.True(t, PricesMatch(0.55, 0.55))
	assert.True(t, PricesMatch(0.55, 0.555))
	assert.False(t, PricesMatch(0.55, 0.56))
}

func TestApplyDelta_ClampsAtZero(t *testing.T) {
	snap := PositionSnapshot{"a": 100, "b": 20}
	out := snap.ApplyDelta(map[string]float64{"a": 50, "b": -30, "c": 10})

	assert.Equal(t, 150.0, out.Get("a"))
	assert.Equal(t, 0.0, out.Get("b"))
	assert.Equal(t, 10.0, out.Get("c"))

	// Original snapshot untouched.
	assert.Equal(t, 100.0, snap.Get("a"))
	assert.Equal(t, 0.0, snap.Get("missing"))
}

func TestOpenOrder_Remaining(t *testing.T) {
	o := OpenOrder{OriginalSize: 100, FilledSize: 40}
	assert.Equal(t, 60.0, o.Remaining())

	over := OpenOrder{OriginalSize: 100, FilledSize: 120}
	assert.Equal(t, 0.0, over.Remaining())
}

func TestOpenOrder_IsLive(t *testing.T) {
	assert.True(t, OpenOrder{Status: "live"}.IsLive())
	assert.True(t, OpenOrder{Status: "LIVE"}.IsLive())
	assert.True(t, OpenOrder{Status: "open"}.IsLive())
	assert.False(t, OpenOrder{Status: "matched"}.IsLive())
	assert.False(t, OpenOrder{Status: "canceled"}.IsLive())
	assert.False(t, OpenOrder{Status: ""}.IsLive())
	assert.False(t, OpenOrder{Status: "weird-new-status"}.IsLive())
}
