package realtime

import "time"

const (
	// Max bytes per websocket frame read.
	defaultMaxFrameBytes = 64 << 10

	defaultSendQueueSize = 64
	minSendQueueSize     = 8

	defaultWriteTimeout = 5 * time.Second
	closeGrace          = 1 * time.Second

	defaultHeartbeatInterval = 25 * time.Second
	defaultHeartbeatTimeout  = 5 * time.Second
	defaultMaxPingFailures   = 3

	defaultMaxReadFailures = 3

	defaultRateWindow = 10 * time.Second
)
