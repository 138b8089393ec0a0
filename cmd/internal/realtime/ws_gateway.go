package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	v1 "deeplink/shared/contracts/session/v1"

	"github.com/coder/websocket"
)

// Subprotocol is offered to clients that ask for one. It is not required.
const Subprotocol = "deeplink.session.v1"

// FrameHandler answers one inbound text frame.
type FrameHandler interface {
	Dispatch(ctx context.Context, raw []byte, sc SessionContext) ([]byte, bool)
}

// WSGateway is the WebSocket entrypoint of the session protocol.
//
// Per connection it runs a read loop (this goroutine), a writer draining the
// client's send queue and a heartbeat. Frames are dispatched in arrival order.
type WSGateway struct {
	log     *slog.Logger
	handler FrameHandler
	obs     Observer
	cfg     GatewayConfig

	// Derived for websocket.Accept origin checks, which authorize same-host
	// origins by default and need OriginPatterns for cross-origin ones.
	originPatterns []string
}

// NewWSGateway constructs a gateway. obs may be nil.
func NewWSGateway(log *slog.Logger, handler FrameHandler, obs Observer, cfg GatewayConfig) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	cfg = cfg.withDefaults()

	return &WSGateway{
		log:            log,
		handler:        handler,
		obs:            obs,
		cfg:            cfg,
		originPatterns: deriveOriginPatterns(cfg.AllowedOrigins),
	}
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and serves it until
// the peer leaves, the transport dies or the server shuts down.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	started := time.Now().UTC()
	connID, err := NewConnID(started)
	if err != nil {
		g.log.Error("ws.conn_id.fail", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(g.cfg.MaxFrameBytes)

	log := g.log.With("conn_id", connID)
	log.Info("ws.upgrade", "remote", r.RemoteAddr, "user_agent", r.UserAgent(), "subprotocol", conn.Subprotocol())
	g.obs.SessionOpened()

	client := NewClient(connID, g.cfg.SendQueueSize)
	sc := SessionContext{ConnID: connID, Remote: r.RemoteAddr}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(ctx, conn, client, log)
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, client, log, shutdown)
	}()

	received := g.readLoop(ctx, conn, client, sc, log, shutdown)

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone
	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}

	g.obs.SessionClosed(received)
	log.Info("ws.session.end", "received", received, "duration", time.Since(started).Round(time.Millisecond))
}

func (g *WSGateway) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	client *Client,
	sc SessionContext,
	log *slog.Logger,
	shutdown func(websocket.StatusCode, string),
) int {
	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	received := 0
	failures := 0
	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return received
			}
			if reason, terminal := terminalReadErr(err); terminal {
				log.Debug("ws.read.end", "reason", reason, "close_status", websocket.CloseStatus(err))
				shutdown(websocket.StatusNormalClosure, reason)
				return received
			}
			failures++
			log.Warn("ws.read.fail", "failures", failures, "err", err)
			if failures >= g.cfg.MaxReadFailures {
				shutdown(websocket.StatusInternalError, "read failed")
				return received
			}
			continue
		}
		failures = 0
		received++

		if mt != websocket.MessageText {
			log.Debug("ws.frame.discard", "type", mt, "bytes", len(data))
			g.obs.FrameDiscarded()
			continue
		}

		if !rl.Allow(time.Now()) {
			g.obs.Request("", v1.CodeRateLimited)
			if reply, ok := rateLimitedReply(data); ok {
				g.enqueue(ctx, client, reply)
			}
			continue
		}

		reply, ok := g.handler.Dispatch(ctx, data, sc)
		if ok && !g.enqueue(ctx, client, reply) {
			return received
		}
	}
}

func (g *WSGateway) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case frame := <-client.Send:
			wctx, cancel := context.WithTimeout(ctx, g.cfg.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				// Delivery is best effort; the read side decides when the session ends.
				log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
			}
		}
	}
}

// heartbeat probes liveness right away, then every HeartbeatInterval.
func (g *WSGateway) heartbeat(
	ctx context.Context,
	conn *websocket.Conn,
	client *Client,
	log *slog.Logger,
	shutdown func(websocket.StatusCode, string),
) {
	// The entry probe only has to be sent. A client that is busy before its
	// first read cannot answer yet, so a missing pong is not fatal here.
	if err := g.ping(ctx, conn); err != nil {
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, context.DeadlineExceeded):
			log.Debug("ws.probe.unanswered", "timeout", g.cfg.HeartbeatTimeout)
		default:
			log.Info("ws.probe.fail", "err", err)
			shutdown(websocket.StatusGoingAway, "liveness probe failed")
			return
		}
	}

	t := time.NewTicker(g.cfg.HeartbeatInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			if err := g.ping(ctx, conn); err != nil {
				failures++
				log.Info("ws.ping.fail", "failures", failures, "err", err)
				if failures >= g.cfg.MaxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (g *WSGateway) ping(ctx context.Context, conn *websocket.Conn) error {
	pctx, cancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
	defer cancel()
	return conn.Ping(pctx)
}

// enqueue waits for queue space; it gives up only when the session ends.
func (g *WSGateway) enqueue(ctx context.Context, client *Client, frame []byte) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- frame:
		return true
	}
}

func rateLimitedReply(data []byte) ([]byte, bool) {
	req, _ := v1.DecodeRequest(data)
	out, err := v1.EncodeResponse(req.ID, req.Method, v1.CodeRateLimited, v1.ErrorResult{Message: "too many requests"})
	if err != nil {
		return nil, false
	}
	return out, true
}

func terminalReadErr(err error) (string, bool) {
	switch {
	case websocket.CloseStatus(err) != -1:
		return "peer closed", true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context done", true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return "conn closed", true
	default:
		return "", false
	}
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)
	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			continue
		case a == "*":
			return nil
		case origin == a:
			return nil
		case originHost != "" && originHost == originHostOnly(a):
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatterns turns the allowlist into websocket.Accept host patterns
// so both layers agree. Accept matches against host:port, so every host is
// also allowed with any port. "*" passes through.
func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed)*2)
	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			seen["*"] = struct{}{}
			seen["*:*"] = struct{}{}
			continue
		}
		if h := originHostOnly(a); h != "" {
			seen[h] = struct{}{}
			seen[h+":*"] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
