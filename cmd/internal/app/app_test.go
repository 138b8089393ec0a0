package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deeplink/cmd/internal/auth/session"
	"deeplink/cmd/internal/device"
	v1 "deeplink/shared/contracts/session/v1"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://deeplink.example.com", want: "wss://deeplink.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()

	t.Setenv("DEEPLINK_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return *cfg
}

func newTestApp(t *testing.T, store Store) (*App, *httptest.Server) {
	t.Helper()

	cfg := testConfig(t)
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))

	backend := Backend{
		Store:    store,
		Nonces:   session.NewInMemoryNonceStore(),
		Registry: device.NewInMemoryRegistry(),
	}
	a, err := newWithBackend(cfg, log, backend)
	if err != nil {
		t.Fatalf("newWithBackend: %v", err)
	}

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return a, srv
}

type failingStore struct{ nopStore }

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func getStatus(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHandler_Probes(t *testing.T) {
	_, srv := newTestApp(t, nopStore{})

	if code, body := getStatus(t, srv.URL+"/healthz"); code != http.StatusOK || body != "ok\n" {
		t.Fatalf("/healthz = %d %q", code, body)
	}
	if code, _ := getStatus(t, srv.URL+"/readyz"); code != http.StatusOK {
		t.Fatalf("/readyz = %d want 200", code)
	}
	if code, body := getStatus(t, srv.URL+"/metrics"); code != http.StatusOK || !strings.Contains(body, "deeplink_ws_sessions_active") {
		t.Fatalf("/metrics = %d, missing gateway metrics", code)
	}
}

func TestHandler_ReadyzReportsStoreFailure(t *testing.T) {
	_, srv := newTestApp(t, failingStore{})

	if code, _ := getStatus(t, srv.URL+"/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz = %d want 503", code)
	}
	if code, _ := getStatus(t, srv.URL+"/healthz"); code != http.StatusOK {
		t.Fatalf("/healthz = %d want 200", code)
	}
}

func TestHandler_WebsocketGetNonce(t *testing.T) {
	a, srv := newTestApp(t, nopStore{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsBaseURL(srv.URL)+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	req := `{"id":7,"method":"getNonce","params":{"user_id":"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp v1.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if resp.ID != 7 || resp.Method != v1.MethodGetNonce || resp.Code != v1.CodeOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	var res v1.GetNonceResult
	if err := json.Unmarshal(resp.Result, &res); err != nil || res.Nonce != "0" {
		t.Fatalf("result=%s err=%v want nonce 0", resp.Result, err)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
	if got := testutil.ToFloat64(a.metrics.requests.WithLabelValues(v1.MethodGetNonce, "0")); got != 1 {
		t.Fatalf("getNonce requests metric=%v want 1", got)
	}
}
