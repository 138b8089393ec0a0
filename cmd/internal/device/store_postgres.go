package device

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry is a Registry backed by PostgreSQL (<schema>.devices).
//
// The pool is owned by the caller; the registry never closes it.
type PostgresRegistry struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresRegistry.
type PostgresOption func(*PostgresRegistry) error

// WithSchema sets the schema holding the devices table (default: "deeplink").
func WithSchema(schema string) PostgresOption {
	return func(r *PostgresRegistry) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("device: empty schema")
		}
		if !pgIdentRE.MatchString(schema) {
			return errors.New("device: invalid schema identifier")
		}
		r.schema = schema
		return nil
	}
}

// NewPostgresRegistry constructs a Postgres-backed Registry.
func NewPostgresRegistry(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresRegistry, error) {
	r := &PostgresRegistry{pool: pool, schema: "deeplink"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.pool == nil {
		return nil, errors.New("device: nil pool")
	}
	return r, nil
}

// EnsureSchema creates the schema and devices table when missing.
// It mirrors db/migrations/0001_init.sql.
func (r *PostgresRegistry) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{r.schema}.Sanitize()); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+r.table()+` (
			device_id   TEXT PRIMARY KEY CHECK (device_id ~ '^[1-9][0-9]{8}$'),
			device_name TEXT NOT NULL,
			mac         TEXT NOT NULL,
			online      BOOLEAN NOT NULL DEFAULT TRUE,
			add_time    TIMESTAMPTZ NOT NULL,
			update_time TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Exists reports whether id is registered.
func (r *PostgresRegistry) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+r.table()+` WHERE device_id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Insert claims rec.DeviceID atomically via ON CONFLICT DO NOTHING.
func (r *PostgresRegistry) Insert(ctx context.Context, rec Record) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO `+r.table()+` (device_id, device_name, mac, online, add_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (device_id) DO NOTHING`,
		rec.DeviceID, rec.DeviceName, rec.MAC, rec.Online, rec.AddTime, rec.UpdateTime,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceExists
	}
	return nil
}

// Get loads a record by id.
func (r *PostgresRegistry) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `
		SELECT device_id, device_name, mac, online, add_time, update_time
		  FROM `+r.table()+`
		 WHERE device_id = $1`, id,
	).Scan(&rec.DeviceID, &rec.DeviceName, &rec.MAC, &rec.Online, &rec.AddTime, &rec.UpdateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrDeviceNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.AddTime = rec.AddTime.UTC()
	rec.UpdateTime = rec.UpdateTime.UTC()
	return rec, nil
}

func (r *PostgresRegistry) table() string {
	return pgx.Identifier{r.schema, "devices"}.Sanitize()
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
