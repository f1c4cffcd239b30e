package metrics

import "time"

// Recorder provides methods for recording reconciler metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordCycle records one finished cycle.
func (r *Recorder) RecordCycle(outcome string, duration time.Duration) {
	CyclesTotal.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(duration.Seconds())
}

// RecordOrderPlaced records an accepted placement.
func (r *Recorder) RecordOrderPlaced(style, side string) {
	OrdersPlacedTotal.WithLabelValues(style, side).Inc()
}

// RecordOrderRejected records a venue rejection.
func (r *Recorder) RecordOrderRejected(style string) {
	OrdersRejectedTotal.WithLabelValues(style).Inc()
}

// RecordCancel records a cancel attempt.
func (r *Recorder) RecordCancel(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	CancelsTotal.WithLabelValues(result).Inc()
}

// RecordTrackerSizes records the pending and deferred gauges.
func (r *Recorder) RecordTrackerSizes(pending, deferred int) {
	PendingAssets.Set(float64(pending))
	DeferredEntries.Set(float64(deferred))
}
