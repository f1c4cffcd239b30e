package ports

import (
	"context"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// PositionProvider reads the owner's current holdings from the venue's
// position ledger. It never fails: any transport or parse error yields an
// empty snapshot, which only delays convergence.
type PositionProvider interface {
	FetchPositions(ctx context.Context, owner string) domain.PositionSnapshot
}

// IntentProvider fetches the current list of desired trades from the copy
// feed. Errors propagate and abort the cycle; domain.ErrNoIntentData marks
// a null body, which is not the same as an empty list.
type IntentProvider interface {
	FetchIntents(ctx context.Context) ([]domain.DesiredIntent, error)
}
