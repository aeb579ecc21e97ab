package auth

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/modules/user"
	"github.com/georgemunganga/onchain-storefront/internal/platform/session"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) GetDel(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.data, key)
	return redis.NewStringResult(v, nil)
}

type memSessions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Session
}

func (m *memSessions) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ID] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type fakeUsers map[common.Address]*user.User

func (f fakeUsers) EnsureWalletUser(_ context.Context, wallet common.Address) (*user.User, error) {
	if u, ok := f[wallet]; ok {
		return u, nil
	}
	u := &user.User{ID: uuid.New(), WalletAddress: strings.ToLower(wallet.Hex())}
	f[wallet] = u
	return u, nil
}

type fixture struct {
	svc      *service
	redis    *fakeRedis
	sessions *memSessions
	key      *ecdsa.PrivateKey
	address  common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	rdb := newFakeRedis()
	sessions := &memSessions{rows: map[uuid.UUID]Session{}}
	opts := Options{Secret: []byte("test-secret"), Domain: "storefront.test", NonceTTL: 5 * time.Minute, SessionTTL: time.Hour}
	svc := NewService(opts, NewRedisNonceStore(rdb), sessions, fakeUsers{}, zap.NewNop()).(*service)
	return &fixture{svc: svc, redis: rdb, sessions: sessions, key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// sign produces a wallet-style personal_sign signature with v in {27, 28}.
func sign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func (f *fixture) signIn(t *testing.T) *Token {
	t.Helper()
	c, err := f.svc.Challenge(context.Background(), f.address)
	require.NoError(t, err)
	tok, err := f.svc.Verify(context.Background(), VerifyRequest{Address: f.address.Hex(), Signature: sign(t, f.key, c.Message)})
	require.NoError(t, err)
	return tok
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestChallengeStoresNonceWithTTL(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Challenge(context.Background(), f.address)
	require.NoError(t, err)
	assert.Contains(t, c.Message, f.address.Hex())
	assert.Contains(t, c.Message, c.Nonce)

	key := nonceKey(f.address)
	assert.Equal(t, c.Nonce, f.redis.data[key])
	assert.Equal(t, 5*time.Minute, f.redis.ttls[key])
}

func TestVerifyAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	tok := f.signIn(t)
	assert.NotEmpty(t, tok.Token)
	assert.Len(t, f.sessions.rows, 1)

	ident, err := f.svc.Authenticate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.Equal(t, f.address, ident.Wallet)
	assert.Equal(t, tok.User.ID, ident.UserID)
}

func TestVerifyConsumesNonce(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Challenge(context.Background(), f.address)
	require.NoError(t, err)
	req := VerifyRequest{Address: f.address.Hex(), Signature: sign(t, f.key, c.Message)}

	_, err = f.svc.Verify(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), req)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.ErrorIs(t, err, ErrNonceNotFound)
}

func TestVerifyRejectsOtherSigner(t *testing.T) {
	f := newFixture(t)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	c, err := f.svc.Challenge(context.Background(), f.address)
	require.NoError(t, err)
	_, err = f.svc.Verify(context.Background(), VerifyRequest{Address: f.address.Hex(), Signature: sign(t, other, c.Message)})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.Empty(t, f.sessions.rows)
}

func TestVerifyValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), VerifyRequest{Address: "bob", Signature: "0x00"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Verify(context.Background(), VerifyRequest{Address: f.address.Hex(), Signature: "0x1234"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAuthenticateRejects(t *testing.T) {
	f := newFixture(t)
	tok := f.signIn(t)

	_, err := f.svc.Authenticate(context.Background(), "garbage")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	other := NewService(Options{Secret: []byte("other"), SessionTTL: time.Hour}, nil, f.sessions, nil, zap.NewNop())
	_, err = other.Authenticate(context.Background(), tok.Token)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.Authenticate(context.Background(), tok.Token)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	f.svc.now = time.Now

	ident, err := f.svc.Authenticate(context.Background(), tok.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(context.Background(), ident.SessionID))
	_, err = f.svc.Authenticate(context.Background(), tok.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMiddleware(t *testing.T) {
	f := newFixture(t)
	tok := f.signIn(t)

	reached := false
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, reached = session.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		wallet common.Address
		status int
	}{
		{"no header", "", f.address, http.StatusUnauthorized},
		{"not bearer", "Basic abc", f.address, http.StatusUnauthorized},
		{"bad token", "Bearer nope", f.address, http.StatusUnauthorized},
		{"other wallet", "Bearer " + tok.Token, common.HexToAddress("0x01"), http.StatusForbidden},
		{"operator", "Bearer " + tok.Token, f.address, http.StatusNoContent},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			reached = false
			h := chi.Chain(Authenticate(f.svc), RequireWallet(c.wallet)).Handler(ok)
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, c.status, rec.Code)
			assert.Equal(t, c.status == http.StatusNoContent, reached)
		})
	}
}
