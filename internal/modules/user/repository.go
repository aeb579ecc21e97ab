package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for users.
type Repository interface {
	// UpsertByWallet returns the user owning wallet, creating it on first sight.
	UpsertByWallet(ctx context.Context, wallet string) (*User, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// UpdateProfile stores name, email and image of u.
	UpdateProfile(ctx context.Context, u *User) error
}
