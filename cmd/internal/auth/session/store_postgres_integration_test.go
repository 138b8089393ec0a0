package session_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"deeplink/cmd/internal/auth/session"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// Integration tests are enabled when DEEPLINK_TEST_POSTGRES_URL is set.

func TestPostgresNonceStore_Contract(t *testing.T) {
	t.Parallel()

	raw := strings.TrimSpace(os.Getenv("DEEPLINK_TEST_POSTGRES_URL"))
	if raw == "" {
		t.Skip("integration test skipped: DEEPLINK_TEST_POSTGRES_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema := "deeplink_it_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	store, err := session.NewPostgresNonceStore(pool, session.WithSchema(schema))
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	// Idempotent.
	require.NoError(t, store.EnsureSchema(ctx))

	runNonceStoreContract(t, store)
}

func TestNewPostgresNonceStore_RejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := session.NewPostgresNonceStore(nil)
	require.Error(t, err)

	_, err = session.NewPostgresNonceStore(&pgxpool.Pool{}, session.WithSchema("x y"))
	require.Error(t, err)
}
