package domain

import "time"

// CycleAudit is the per-cycle summary persisted for reporting.
type CycleAudit struct {
	ID              int64
	RanAt           time.Time
	SnapshotAssets  int
	Intents         int
	PendingAssets   int
	DeferredEntries int
	OrdersPlaced    int
	OrdersCancelled int
	MarketSubmitted int
	Errors          int
	Duration        time.Duration
}

// SubmissionAudit is one order submission attempt, accepted or not.
type SubmissionAudit struct {
	ID        string // local UUID
	OrderID   string // venue order ID, empty when rejected
	AssetID   string
	Side      Side
	Style     ExecStyle
	Price     float64
	Size      float64
	Success   bool
	Error     string
	CreatedAt time.Time
}
