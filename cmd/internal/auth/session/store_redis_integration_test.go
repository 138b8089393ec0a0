package session_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"deeplink/cmd/internal/auth/session"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Integration tests are enabled when DEEPLINK_TEST_REDIS_URL is set.

func TestRedisNonceStore_Contract(t *testing.T) {
	t.Parallel()

	raw := strings.TrimSpace(os.Getenv("DEEPLINK_TEST_REDIS_URL"))
	if raw == "" {
		t.Skip("integration test skipped: DEEPLINK_TEST_REDIS_URL is not set")
	}

	opt, err := redis.ParseURL(raw)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())

	prefix := "deeplink:test:" + uuid.NewString() + ":nonce:"
	t.Cleanup(func() {
		keys, _ := rdb.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			_ = rdb.Del(context.Background(), keys...).Err()
		}
	})

	store, err := session.NewRedisNonceStore(rdb, prefix)
	require.NoError(t, err)

	runNonceStoreContract(t, store)
}
