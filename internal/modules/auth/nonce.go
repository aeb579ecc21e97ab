package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const noncePrefix = "storefront:auth:nonce:"

// redisClient is the subset of go-redis the nonce store uses.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisNonceStore keeps nonces under a key prefix with a TTL.
type RedisNonceStore struct {
	client redisClient
}

func NewRedisNonceStore(client redisClient) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func nonceKey(address common.Address) string {
	return noncePrefix + strings.ToLower(address.Hex())
}

func (s *RedisNonceStore) Put(ctx context.Context, address common.Address, nonce string, ttl time.Duration) error {
	return s.client.Set(ctx, nonceKey(address), nonce, ttl).Err()
}

func (s *RedisNonceStore) Take(ctx context.Context, address common.Address) (string, error) {
	nonce, err := s.client.GetDel(ctx, nonceKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNonceNotFound
	}
	if err != nil {
		return "", err
	}
	return nonce, nil
}
