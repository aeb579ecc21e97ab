package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a storefront account. Each wallet address has exactly one.
type User struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Image         string    `json:"image"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpdateRequest is a partial profile update. Nil fields are left unchanged.
type UpdateRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=120"`
	Email *string `json:"email" validate:"omitempty,email"`
	Image *string `json:"image" validate:"omitempty,url"`
}
