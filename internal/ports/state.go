package ports

import (
	"context"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// StateStore persists the asset → deferred-state map across restarts.
// Save must be atomic (write-temp-then-rename) so a crash mid-write never
// corrupts the last committed state.
type StateStore interface {
	Load() (map[string]domain.DeferredOrderState, error)
	Save(states map[string]domain.DeferredOrderState) error
}

// AuditStore records what each cycle did, for reporting and post-mortems.
// Failures here never abort a cycle.
type AuditStore interface {
	SaveCycle(ctx context.Context, c domain.CycleAudit) error
	SaveSubmission(ctx context.Context, s domain.SubmissionAudit) error
	GetRecentCycles(ctx context.Context, limit int) ([]domain.CycleAudit, error)
	Close() error
}
