// Package main provides a CI-friendly WebSocket smoke test for the deeplink session gateway.
//
// It validates:
//   - handshake and optional subprotocol selection
//   - text ping/pong liveness
//   - getNonce for a fresh keypair
//   - registerDevice returning a 9-digit id
//   - signed login returning a token
//   - replayed login rejected with the nonce replay code
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"deeplink/cmd/identity"
	"deeplink/cmd/security/sr25519"
	v1 "deeplink/shared/contracts/session/v1"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "deeplink.session.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	conn   *websocket.Conn
	nextID uint64
}

func main() {
	var (
		wsURL      = flag.String("url", "ws://127.0.0.1:3000/ws", "WebSocket URL")
		origin     = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		deviceName = flag.String("device", "smoke-runner", "Device name to register")
		mac        = flag.String("mac", "02:00:00:00:00:01", "Device MAC to register")
		sigCtx     = flag.String("context", sr25519.DefaultContext, "sr25519 signing context")
		timeout    = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	kp, err := sr25519.GenerateKeypair(*sigCtx)
	if err != nil {
		fatalf("generate keypair: %v", err)
	}
	userID := kp.Address(identity.GenericPrefix)

	root := context.Background()

	c := mustConnect(root, *wsURL, *origin, *timeout)
	defer closeWS(c.conn)

	c.mustPing(root, *timeout)

	nonce := c.mustGetNonce(root, userID, *timeout)
	if *verbose {
		fmt.Printf("user=%s nonce=%d\n", userID, nonce)
	}

	var dev v1.RegisterDeviceResult
	c.mustCall(root, v1.MethodRegisterDevice, v1.RegisterDeviceParams{DeviceName: *deviceName, MAC: *mac}, v1.CodeOK, &dev, *timeout)
	if len(dev.DeviceID) != 9 {
		fatalf("registerDevice: device_id=%q is not 9 digits", dev.DeviceID)
	}

	next := nonce + 1
	sig, err := kp.SignHex([]byte(strconv.FormatUint(next, 10)))
	if err != nil {
		fatalf("sign nonce: %v", err)
	}
	params := v1.LoginParams{UserID: userID, DeviceID: dev.DeviceID, Nonce: next, Signature: sig}

	var login v1.LoginResult
	c.mustCall(root, v1.MethodLogin, params, v1.CodeOK, &login, *timeout)
	if strings.TrimSpace(login.Token) == "" {
		fatalf("login: empty token")
	}

	c.mustCall(root, v1.MethodLogin, params, v1.CodeNonceReplay, nil, *timeout)

	if got := c.mustGetNonce(root, userID, *timeout); got != next {
		fatalf("getNonce after login: got=%d want=%d", got, next)
	}

	fmt.Printf("OK: user=%s device_id=%s nonce=%d token_len=%d\n", userID, dev.DeviceID, next, len(login.Token))
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	assertSubprotocol(resp, defaultSubprotocol)
	conn.SetReadLimit(maxReadBytes)

	return &smokeClient{conn: conn}
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) mustPing(parent context.Context, stepTimeout time.Duration) {
	mustWriteWithTimeout(parent, c.conn, []byte(v1.PingFrame), stepTimeout)
	if got := string(c.mustRead(parent, stepTimeout)); got != v1.PongFrame {
		fatalf("ping: got=%q want=%q", got, v1.PongFrame)
	}
}

func (c *smokeClient) mustGetNonce(parent context.Context, userID string, stepTimeout time.Duration) uint64 {
	var res v1.GetNonceResult
	c.mustCall(parent, v1.MethodGetNonce, v1.GetNonceParams{UserID: userID}, v1.CodeOK, &res, stepTimeout)

	n, err := strconv.ParseUint(res.Nonce, 10, 64)
	if err != nil {
		fatalf("getNonce: nonce=%q is not a decimal uint64", res.Nonce)
	}
	return n
}

// mustCall sends one request and asserts the reply's id, method and code.
// result may be nil when the body is not inspected.
func (c *smokeClient) mustCall(parent context.Context, method string, params any, wantCode v1.Code, result any, stepTimeout time.Duration) {
	c.nextID++
	req := v1.Request{ID: c.nextID, Method: method, Params: mustJSON(params)}

	b, err := json.Marshal(req)
	if err != nil {
		fatalf("marshal request: %v", err)
	}
	mustWriteWithTimeout(parent, c.conn, b, stepTimeout)

	var resp v1.Response
	if err := json.Unmarshal(c.mustRead(parent, stepTimeout), &resp); err != nil {
		fatalf("%s: bad json: %v", method, err)
	}
	if resp.ID != req.ID || resp.Method != method {
		fatalf("%s: reply id=%d method=%q want id=%d", method, resp.ID, resp.Method, req.ID)
	}
	if resp.Code != wantCode {
		var ep v1.ErrorResult
		_ = json.Unmarshal(resp.Result, &ep)
		fatalf("%s: code=%d msg=%q want code=%d", method, resp.Code, ep.Message, wantCode)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			fatalf("%s: bad result: %v", method, err)
		}
	}
}

func (c *smokeClient) mustRead(parent context.Context, stepTimeout time.Duration) []byte {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		mt, data, err := c.conn.Read(ctx)
		if err != nil {
			fatalf("read: %v", err)
		}
		if mt == websocket.MessageText {
			return data
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, b []byte, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
