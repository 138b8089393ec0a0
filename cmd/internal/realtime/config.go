package realtime

import "time"

// GatewayConfig holds the websocket session settings.
// Zero values are replaced by defaults in NewWSGateway.
type GatewayConfig struct {
	// OriginRequired rejects upgrades without an Origin header.
	OriginRequired bool
	// AllowedOrigins lists accepted origins; "*" accepts any.
	AllowedOrigins []string
	// DevInsecure disables the websocket library's own origin check.
	DevInsecure bool

	MaxFrameBytes int64
	SendQueueSize int
	WriteTimeout  time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxPingFailures   int

	// MaxReadFailures bounds consecutive non-terminal read errors.
	MaxReadFailures int

	// RateEvents per RateWindow; 0 disables the limiter.
	RateEvents int
	RateWindow time.Duration
}

// DefaultGatewayConfig returns settings compatible with existing clients:
// no origin requirement and no rate limit.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		AllowedOrigins:    []string{"*"},
		MaxFrameBytes:     defaultMaxFrameBytes,
		SendQueueSize:     defaultSendQueueSize,
		WriteTimeout:      defaultWriteTimeout,
		HeartbeatInterval: defaultHeartbeatInterval,
		HeartbeatTimeout:  defaultHeartbeatTimeout,
		MaxPingFailures:   defaultMaxPingFailures,
		MaxReadFailures:   defaultMaxReadFailures,
		RateWindow:        defaultRateWindow,
	}
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	d := DefaultGatewayConfig()
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = d.SendQueueSize
	}
	if c.SendQueueSize < minSendQueueSize {
		c.SendQueueSize = minSendQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.MaxPingFailures <= 0 {
		c.MaxPingFailures = d.MaxPingFailures
	}
	if c.MaxReadFailures <= 0 {
		c.MaxReadFailures = d.MaxReadFailures
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	return c
}
