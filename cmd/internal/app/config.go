package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"deeplink/cmd/internal/auth/session"
	"deeplink/cmd/internal/realtime"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

// Config is the root server configuration.
//
// Source priority:
//  1. explicit path passed to Load/MustLoad (the -config flag);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only.
//
// Environment variables always overlay values read from a file.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	WS      WSConfig      `yaml:"ws"`
	Store   StoreConfig   `yaml:"store"`
	Auth    AuthConfig    `yaml:"auth"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr              string        `yaml:"addr" env:"DEEPLINK_HTTP_ADDR" env-default:"0.0.0.0:3000"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"DEEPLINK_HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"DEEPLINK_HTTP_IDLE_TIMEOUT" env-default:"60s"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" env:"DEEPLINK_HTTP_MAX_HEADER_BYTES" env-default:"1048576"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"DEEPLINK_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// LogConfig selects level and handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"DEEPLINK_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"DEEPLINK_LOG_FORMAT" env-default:"json"`
	Color  bool   `yaml:"color" env:"DEEPLINK_LOG_COLOR" env-default:"true"`
}

// WSConfig mirrors realtime.GatewayConfig.
type WSConfig struct {
	OriginRequired    bool          `yaml:"origin_required" env:"DEEPLINK_WS_ORIGIN_REQUIRED" env-default:"false"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"DEEPLINK_WS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	DevInsecure       bool          `yaml:"dev_insecure" env:"DEEPLINK_WS_DEV_INSECURE" env-default:"false"`
	MaxFrameBytes     int64         `yaml:"max_frame_bytes" env:"DEEPLINK_WS_MAX_FRAME_BYTES" env-default:"65536"`
	SendQueue         int           `yaml:"send_queue" env:"DEEPLINK_WS_SEND_QUEUE" env-default:"64"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"DEEPLINK_WS_WRITE_TIMEOUT" env-default:"5s"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"DEEPLINK_WS_HEARTBEAT_INTERVAL" env-default:"25s"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout" env:"DEEPLINK_WS_HEARTBEAT_TIMEOUT" env-default:"5s"`
	MaxReadFailures   int           `yaml:"max_read_failures" env:"DEEPLINK_WS_MAX_READ_FAILURES" env-default:"3"`
	RateEvents        int           `yaml:"rate_events" env:"DEEPLINK_WS_RATE_EVENTS" env-default:"0"`
	RateWindow        time.Duration `yaml:"rate_window" env:"DEEPLINK_WS_RATE_WINDOW" env-default:"10s"`
}

// StoreConfig selects the nonce store and device registry backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"DEEPLINK_STORE_DRIVER" env-default:"memory"`

	PostgresURL    string `yaml:"postgres_url" env:"DEEPLINK_POSTGRES_URL"`
	PostgresSchema string `yaml:"postgres_schema" env:"DEEPLINK_POSTGRES_SCHEMA" env-default:"deeplink"`
	DBMaxConns     int32  `yaml:"db_max_conns" env:"DEEPLINK_DB_MAX_CONNS" env-default:"10"`
	DBMinConns     int32  `yaml:"db_min_conns" env:"DEEPLINK_DB_MIN_CONNS" env-default:"0"`

	MongoURL      string `yaml:"mongo_url" env:"DEEPLINK_MONGO_URL"`
	MongoDatabase string `yaml:"mongo_database" env:"DEEPLINK_MONGO_DATABASE" env-default:"deeplink"`

	RedisURL    string `yaml:"redis_url" env:"DEEPLINK_REDIS_URL"`
	RedisPrefix string `yaml:"redis_prefix" env:"DEEPLINK_REDIS_PREFIX" env-default:"deeplink:"`

	// EnsureSchema creates tables and indexes at startup.
	EnsureSchema bool `yaml:"ensure_schema" env:"DEEPLINK_STORE_ENSURE_SCHEMA" env-default:"true"`
}

// AuthConfig configures the login handshake and token issuance.
type AuthConfig struct {
	TokenFormat             string        `yaml:"token_format" env:"DEEPLINK_TOKEN_FORMAT" env-default:"jwt"`
	JWTSecret               string        `yaml:"jwt_secret" env:"DEEPLINK_JWT_SECRET"`
	PasetoSecretKeyHex      string        `yaml:"paseto_secret_key_hex" env:"DEEPLINK_PASETO_V4_SECRET_KEY_HEX"`
	Issuer                  string        `yaml:"issuer" env:"DEEPLINK_TOKEN_ISSUER" env-default:"deeplink"`
	TokenTTL                time.Duration `yaml:"token_ttl" env:"DEEPLINK_TOKEN_TTL" env-default:"336h"`
	ClockSkew               time.Duration `yaml:"clock_skew" env:"DEEPLINK_TOKEN_CLOCK_SKEW" env-default:"30s"`
	SigningContext          string        `yaml:"signing_context" env:"DEEPLINK_SR25519_CONTEXT" env-default:"substrate"`
	RequireRegisteredDevice bool          `yaml:"require_registered_device" env:"DEEPLINK_REQUIRE_REGISTERED_DEVICE" env-default:"false"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"DEEPLINK_METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"DEEPLINK_METRICS_PATH" env-default:"/metrics"`
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration by priority (see Config) and validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config %q: %w", p, err)
		}
		return nil
	}

	switch {
	case path != "":
		if err := readFile(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	case fileExists("local.yaml"):
		if err := readFile("local.yaml"); err != nil {
			return nil, err
		}
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Session maps the auth section to session.Config.
func (c *Config) Session() session.Config {
	return session.Config{
		Issuer:                  c.Auth.Issuer,
		TokenTTL:                c.Auth.TokenTTL,
		ClockSkew:               c.Auth.ClockSkew,
		TokenFormat:             c.Auth.TokenFormat,
		JWTSecret:               c.Auth.JWTSecret,
		PasetoV4SecretKeyHex:    c.Auth.PasetoSecretKeyHex,
		SigningContext:          c.Auth.SigningContext,
		RequireRegisteredDevice: c.Auth.RequireRegisteredDevice,
	}
}

// Gateway maps the ws section to realtime.GatewayConfig.
func (c *Config) Gateway() realtime.GatewayConfig {
	return realtime.GatewayConfig{
		OriginRequired:    c.WS.OriginRequired,
		AllowedOrigins:    c.WS.AllowedOrigins,
		DevInsecure:       c.WS.DevInsecure,
		MaxFrameBytes:     c.WS.MaxFrameBytes,
		SendQueueSize:     c.WS.SendQueue,
		WriteTimeout:      c.WS.WriteTimeout,
		HeartbeatInterval: c.WS.HeartbeatInterval,
		HeartbeatTimeout:  c.WS.HeartbeatTimeout,
		MaxReadFailures:   c.WS.MaxReadFailures,
		RateEvents:        c.WS.RateEvents,
		RateWindow:        c.WS.RateWindow,
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "json", "pretty", "text":
	default:
		return fmt.Errorf("log.format must be json, pretty or text")
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for driver %q", c.Store.Driver)
		}
	case DriverMongo:
		if c.Store.MongoURL == "" {
			return fmt.Errorf("store.mongo_url is required for driver %q", c.Store.Driver)
		}
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, postgres, mongo, redis (got %q)", c.Store.Driver)
	}

	if c.WS.RateEvents < 0 {
		return fmt.Errorf("ws.rate_events must be >= 0")
	}
	if c.WS.MaxReadFailures < 0 {
		return fmt.Errorf("ws.max_read_failures must be >= 0")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return ValidateSecurityConfig(c)
}
