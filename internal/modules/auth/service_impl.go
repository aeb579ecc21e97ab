package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/platform/session"
)

type Options struct {
	Secret     []byte
	Domain     string
	NonceTTL   time.Duration
	SessionTTL time.Duration
}

type claims struct {
	Wallet string `json:"wallet"`
	jwt.StandardClaims
}

type service struct {
	opts     Options
	nonces   NonceStore
	sessions SessionRepository
	users    Users
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new auth service.
func NewService(opts Options, nonces NonceStore, sessions SessionRepository, users Users, logger *zap.Logger) Service {
	return &service{
		opts:     opts,
		nonces:   nonces,
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// signInMessage is the EIP-191 personal message a wallet signs to sign in.
func signInMessage(domain string, address common.Address, nonce string) string {
	return fmt.Sprintf("%s wants you to sign in with your wallet:\n%s\n\nNonce: %s", domain, address.Hex(), nonce)
}

func (s *service) Challenge(ctx context.Context, address common.Address) (*Challenge, error) {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.nonces.Put(ctx, address, nonce, s.opts.NonceTTL); err != nil {
		return nil, fmt.Errorf("store nonce: %w", err)
	}
	return &Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   signInMessage(s.opts.Domain, address, nonce),
		ExpiresAt: s.now().Add(s.opts.NonceTTL).UTC(),
	}, nil
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (*Token, error) {
	address, err := chain.ParseAddress(req.Address)
	if err != nil {
		return nil, apperr.ValidationField("address", "address must be an address")
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return nil, apperr.ValidationField("signature", "signature must be 65 hex-encoded bytes")
	}

	nonce, err := s.nonces.Take(ctx, address)
	if errors.Is(err, ErrNonceNotFound) {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: err.Error(), Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("load nonce: %w", err)
	}

	signer, err := recoverSigner(signInMessage(s.opts.Domain, address, nonce), sig)
	if err != nil || signer != address {
		s.logger.Warn("sign-in signature rejected", zap.String("address", address.Hex()))
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: ErrBadSignature.Error(), Err: ErrBadSignature}
	}

	u, err := s.users.EnsureWalletUser(ctx, address)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.opts.SessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Wallet: address.Hex(),
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID.String(),
			Subject:   u.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: sess.ExpiresAt.Unix(),
		},
	})
	signed, err := token.SignedString(s.opts.Secret)
	if err != nil {
		return nil, err
	}
	s.logger.Info("wallet signed in", zap.String("address", address.Hex()), zap.String("user_id", u.ID.String()))
	return &Token{Token: signed, ExpiresAt: sess.ExpiresAt, User: u}, nil
}

// recoverSigner returns the address that produced sig over message.
func recoverSigner(message string, sig []byte) (common.Address, error) {
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (s *service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *service) Authenticate(ctx context.Context, raw string) (*session.Identity, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.opts.Secret, nil
	})
	if err != nil {
		return nil, unauthorized(ErrInvalidToken)
	}

	sessionID, err := uuid.Parse(c.Id)
	if err != nil {
		return nil, unauthorized(ErrInvalidToken)
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, unauthorized(err)
	}
	if err != nil {
		return nil, err
	}
	if !s.now().Before(sess.ExpiresAt) || sess.UserID.String() != c.Subject {
		return nil, unauthorized(ErrInvalidToken)
	}
	return &session.Identity{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Wallet:    common.HexToAddress(c.Wallet),
	}, nil
}

func unauthorized(err error) error {
	return &apperr.Error{Kind: apperr.KindUnauthorized, Message: err.Error(), Err: err}
}
