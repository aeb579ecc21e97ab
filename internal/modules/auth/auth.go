// Package auth signs users in with their wallet and issues session tokens.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/georgemunganga/onchain-storefront/internal/modules/user"
	"github.com/georgemunganga/onchain-storefront/internal/platform/session"
)

var (
	ErrNonceNotFound   = errors.New("sign-in nonce not found or expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrBadSignature    = errors.New("signature does not match address")
	ErrInvalidToken    = errors.New("invalid session token")
)

// Service defines the interface for authentication-related business logic.
type Service interface {
	// Challenge issues a nonce and the message the wallet must sign.
	Challenge(ctx context.Context, address common.Address) (*Challenge, error)
	// Verify checks a signed challenge and opens a session.
	Verify(ctx context.Context, req VerifyRequest) (*Token, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	// Authenticate resolves a bearer token to a live session.
	Authenticate(ctx context.Context, token string) (*session.Identity, error)
}

type Challenge struct {
	Address   common.Address `json:"address"`
	Nonce     string         `json:"nonce"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type VerifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type Token struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *user.User `json:"user"`
}

// Session is a row of the sessions table.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NonceStore keeps one pending nonce per address.
type NonceStore interface {
	Put(ctx context.Context, address common.Address, nonce string, ttl time.Duration) error
	// Take returns and deletes the nonce, so each can be used once.
	Take(ctx context.Context, address common.Address) (string, error)
}

// SessionRepository defines data access for sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Users is the part of the user service sign-in needs.
type Users interface {
	EnsureWalletUser(ctx context.Context, wallet common.Address) (*user.User, error)
}
