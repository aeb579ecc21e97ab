package purchase

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrStaleTransition is returned when a row is no longer in the state a
// transition expects.
var ErrStaleTransition = errors.New("purchase is not in the expected state")

// Repository defines data access for the purchases ledger.
type Repository interface {
	// Create persists a new purchase in its initial state.
	Create(ctx context.Context, p *Purchase) error

	// Transition moves a purchase from one state to another, recording the
	// transaction hash and error text when set.
	Transition(ctx context.Context, id uuid.UUID, from, to State, txHash, lastError string) error

	GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error)

	// ListByBuyer returns the most recent purchases of buyer first.
	ListByBuyer(ctx context.Context, buyer string, limit int) ([]*Purchase, error)
}
