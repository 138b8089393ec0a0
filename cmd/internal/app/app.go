// Package app wires the deeplink server runtime: config, logging, stores,
// HTTP routes and the websocket session gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deeplink/cmd/internal/auth/session"
	"deeplink/cmd/internal/device"
	"deeplink/cmd/internal/realtime"
	"deeplink/cmd/security/sr25519"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is the app-level lifecycle of a storage backend.
type Store interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Backend bundles the nonce store and device registry of one driver.
type Backend struct {
	Store    Store
	Nonces   session.NonceStore
	Registry device.Registry
}

// nopStore is used for in-memory mode.
type nopStore struct{}

func (nopStore) Ping(context.Context) error  { return nil }
func (nopStore) Close(context.Context) error { return nil }

type pgStore struct{ pool *pgxpool.Pool }

func (s pgStore) Ping(ctx context.Context) error { return PingDB(ctx, s.pool, 2*time.Second) }
func (s pgStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

type mongoStore struct{ cli *mongo.Client }

func (s mongoStore) Ping(ctx context.Context) error  { return s.cli.Ping(ctx, nil) }
func (s mongoStore) Close(ctx context.Context) error { return s.cli.Disconnect(ctx) }

type redisStore struct{ rdb *redis.Client }

func (s redisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
func (s redisStore) Close(context.Context) error    { return s.rdb.Close() }

// App owns the HTTP server and the session gateway dependencies.
type App struct {
	cfg Config
	log Logger

	backend Backend
	metrics *Metrics
	ws      *realtime.WSGateway
}

// New constructs a fully wired App. Store connections are opened here and
// released by Run on shutdown.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.Log)
	}

	backend, err := NewBackend(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	a, err := newWithBackend(cfg, log, backend)
	if err != nil {
		_ = backend.Store.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func newWithBackend(cfg Config, log Logger, backend Backend) (*App, error) {
	scfg := cfg.Session()

	tokens, err := session.NewTokenManager(scfg)
	if err != nil {
		return nil, err
	}

	svc := session.NewService(scfg, backend.Nonces, sr25519.NewVerifier(scfg.SigningContext), backend.Registry, tokens)
	alloc := device.NewAllocator(backend.Registry, device.WithLogger(log))

	metrics := NewMetrics()
	dispatcher := realtime.NewDispatcher(svc, alloc, log, metrics)
	ws := realtime.NewWSGateway(log, dispatcher, metrics, cfg.Gateway())

	return &App{
		cfg:     cfg,
		log:     log,
		backend: backend,
		metrics: metrics,
		ws:      ws,
	}, nil
}

// NewBackend opens the configured driver and, when enabled, creates its schema.
func NewBackend(ctx context.Context, cfg StoreConfig, log Logger) (Backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return newPostgresBackend(ctx, cfg, log)
	case DriverMongo:
		return newMongoBackend(ctx, cfg, log)
	case DriverRedis:
		return newRedisBackend(ctx, cfg, log)
	case DriverMemory, "":
		log.Info("store.inmemory")
		return Backend{
			Store:    nopStore{},
			Nonces:   session.NewInMemoryNonceStore(),
			Registry: device.NewInMemoryRegistry(),
		}, nil
	default:
		return Backend{}, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func newPostgresBackend(ctx context.Context, cfg StoreConfig, log Logger) (Backend, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return Backend{}, err
	}
	fail := func(err error) (Backend, error) {
		pool.Close()
		return Backend{}, err
	}

	nonces, err := session.NewPostgresNonceStore(pool, session.WithSchema(cfg.PostgresSchema))
	if err != nil {
		return fail(err)
	}
	registry, err := device.NewPostgresRegistry(pool, device.WithSchema(cfg.PostgresSchema))
	if err != nil {
		return fail(err)
	}

	if cfg.EnsureSchema {
		if err := nonces.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		if err := registry.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
	}

	log.Info("store.postgres", "schema", cfg.PostgresSchema)
	return Backend{Store: pgStore{pool: pool}, Nonces: nonces, Registry: registry}, nil
}

func newMongoBackend(ctx context.Context, cfg StoreConfig, log Logger) (Backend, error) {
	cli, err := NewMongoClient(ctx, cfg)
	if err != nil {
		return Backend{}, err
	}
	fail := func(err error) (Backend, error) {
		_ = cli.Disconnect(context.Background())
		return Backend{}, err
	}

	db := cli.Database(cfg.MongoDatabase)

	nonces, err := session.NewMongoNonceStore(db)
	if err != nil {
		return fail(err)
	}
	registry, err := device.NewMongoRegistry(db)
	if err != nil {
		return fail(err)
	}

	// Both stores rely on unique indexes for their atomic writes, so a
	// deployment that manages indexes itself must already have them.
	if cfg.EnsureSchema {
		if err := nonces.EnsureIndexes(ctx); err != nil {
			return fail(err)
		}
		if err := registry.EnsureIndexes(ctx); err != nil {
			return fail(err)
		}
	} else {
		if err := nonces.CheckIndexes(ctx); err != nil {
			return fail(err)
		}
		if err := registry.CheckIndexes(ctx); err != nil {
			return fail(err)
		}
	}

	log.Info("store.mongo", "database", cfg.MongoDatabase)
	return Backend{Store: mongoStore{cli: cli}, Nonces: nonces, Registry: registry}, nil
}

func newRedisBackend(ctx context.Context, cfg StoreConfig, log Logger) (Backend, error) {
	rdb, err := NewRedisClient(ctx, cfg)
	if err != nil {
		return Backend{}, err
	}
	fail := func(err error) (Backend, error) {
		_ = rdb.Close()
		return Backend{}, err
	}

	nonces, err := session.NewRedisNonceStore(rdb, cfg.RedisPrefix+"nonce:")
	if err != nil {
		return fail(err)
	}
	registry, err := device.NewRedisRegistry(rdb, cfg.RedisPrefix+"device:")
	if err != nil {
		return fail(err)
	}

	log.Info("store.redis", "prefix", cfg.RedisPrefix)
	return Backend{Store: redisStore{rdb: rdb}, Nonces: nonces, Registry: registry}, nil
}

// Handler returns the full HTTP handler chain.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.backend.Store, a.metrics, a.ws)
	return WithSecurityHeaders(WithRequestLogging(mux, a.log))
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.HTTP.ReadHeaderTimeout, 5*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.HTTP.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.HTTP.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTP.Addr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTP.Addr,
		"ws_url", wsBaseURL(base)+"/ws",
		"store", a.cfg.Store.Driver,
		"token_format", a.cfg.Auth.TokenFormat,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.HTTP.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if runErr == nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			runErr = err
		}
	}

	if err := a.backend.Store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return runErr
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a dialable http URL.
// Wildcard hosts map to loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL maps http(s) to ws(s). A bare host:port is treated as http.
func wsBaseURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "ws://" + strings.TrimPrefix(base, "//")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}
