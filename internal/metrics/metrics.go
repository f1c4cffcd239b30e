// Package metrics exposes Prometheus collectors for the reconciler plus a
// small HTTP server for /metrics and /health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts reconciliation cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Name:      "cycles_total",
		Help:      "Reconciliation cycles by outcome (ok, skipped, error).",
	}, []string{"outcome"})

	// CycleDuration observes how long a full cycle takes.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "polysync",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one reconciliation cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// OrdersPlacedTotal counts accepted order placements by style and side.
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Name:      "orders_placed_total",
		Help:      "Orders accepted by the venue, by style and side.",
	}, []string{"style", "side"})

	// OrdersRejectedTotal counts venue rejections by style.
	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Name:      "orders_rejected_total",
		Help:      "Order submissions the venue rejected, by style.",
	}, []string{"style"})

	// CancelsTotal counts cancel attempts by result.
	CancelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Name:      "cancels_total",
		Help:      "Cancel attempts by result (ok, failed).",
	}, []string{"result"})

	// PendingAssets is the number of assets blocked on settlement.
	PendingAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Name:      "pending_assets",
		Help:      "Assets waiting for a submitted trade to appear in the snapshot.",
	})

	// DeferredEntries is the number of live deferred-order state entries.
	DeferredEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Name:      "deferred_entries",
		Help:      "Assets currently governed by a deferred limit intent.",
	})
)
