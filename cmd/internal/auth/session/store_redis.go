package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces nonce keys.
const DefaultRedisPrefix = "deeplink:nonce:"

// Nonces are stored zero-padded to 20 digits so that Lua string comparison
// orders them numerically across the whole uint64 range.
var setIfGreaterScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (not cur) or cur < ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// RedisNonceStore implements NonceStore with one string key per user.
// The client is owned by the caller.
type RedisNonceStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisNonceStore constructs a NonceStore. An empty prefix selects DefaultRedisPrefix.
func NewRedisNonceStore(rdb redis.UniversalClient, prefix string) (*RedisNonceStore, error) {
	if rdb == nil {
		return nil, errors.New("session: nil redis client")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisNonceStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisNonceStore) key(userID string) string { return s.prefix + userID }

// Get returns the stored nonce or 0.
func (s *RedisNonceStore) Get(ctx context.Context, userID string) (uint64, error) {
	raw, err := s.rdb.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

// SetIfGreater runs the compare-and-set script atomically on the server.
func (s *RedisNonceStore) SetIfGreater(ctx context.Context, userID string, nonce uint64) (bool, error) {
	if nonce == 0 {
		return false, nil
	}
	n, err := setIfGreaterScript.Run(ctx, s.rdb, []string{s.key(userID)}, padNonce(nonce)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func padNonce(n uint64) string {
	return fmt.Sprintf("%020d", n)
}
