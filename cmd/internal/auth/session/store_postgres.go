package session

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNonceStore implements NonceStore using PostgreSQL (<schema>.user_nonces).
//
// Nonces are stored as NUMERIC(20,0) so the full uint64 range round-trips.
// The pool is owned by the caller.
type PostgresNonceStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresNonceStore.
type PostgresOption func(*PostgresNonceStore) error

// WithSchema sets the schema holding the user_nonces table (default: "deeplink").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresNonceStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("session: empty schema")
		}
		if !pgIdentRE.MatchString(schema) {
			return errors.New("session: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresNonceStore creates a Postgres-backed NonceStore.
func NewPostgresNonceStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresNonceStore, error) {
	s := &PostgresNonceStore{pool: pool, schema: "deeplink"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("session: nil pool")
	}
	return s, nil
}

// EnsureSchema creates the schema and user_nonces table when missing.
// It mirrors db/migrations/0001_init.sql.
func (s *PostgresNonceStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{s.schema}.Sanitize()); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table()+` (
			user_id    TEXT PRIMARY KEY,
			nonce      NUMERIC(20,0) NOT NULL CHECK (nonce >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Get returns the stored nonce or 0.
func (s *PostgresNonceStore) Get(ctx context.Context, userID string) (uint64, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT nonce::text FROM `+s.table()+` WHERE user_id = $1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

// SetIfGreater upserts the nonce; the conflict branch only fires for a larger value.
func (s *PostgresNonceStore) SetIfGreater(ctx context.Context, userID string, nonce uint64) (bool, error) {
	if nonce == 0 {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` AS n (user_id, nonce, updated_at)
		VALUES ($1, $2::text::numeric, now())
		ON CONFLICT (user_id) DO UPDATE
		   SET nonce = EXCLUDED.nonce, updated_at = EXCLUDED.updated_at
		 WHERE n.nonce < EXCLUDED.nonce`,
		userID, strconv.FormatUint(nonce, 10),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresNonceStore) table() string {
	return pgx.Identifier{s.schema, "user_nonces"}.Sanitize()
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
