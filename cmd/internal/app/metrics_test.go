package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v1 "deeplink/shared/contracts/session/v1"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Sessions(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(5)
	m.FrameDiscarded()

	require.Equal(t, 1.0, testutil.ToFloat64(m.sessionsActive))
	require.Equal(t, 2.0, testutil.ToFloat64(m.sessionsTotal))
	require.Equal(t, 5.0, testutil.ToFloat64(m.framesReceived))
	require.Equal(t, 1.0, testutil.ToFloat64(m.framesDiscarded))
}

func TestMetrics_RequestLabels(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.Request(v1.MethodLogin, v1.CodeOK)
	m.Request(v1.MethodLogin, v1.CodeNonceReplay)
	m.Request(v1.MethodLogin, v1.CodeNonceReplay)
	m.Request("", v1.CodeBadRequest)
	m.Request("dropTables", v1.CodeBadRequest)

	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("login", "0")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("login", "1003")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("invalid", "1001")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unknown", "1001")))
	require.Equal(t, 4, testutil.CollectAndCount(m.requests))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.Request(v1.MethodGetNonce, v1.CodeOK)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), `deeplink_session_requests_total{code="0",method="getNonce"} 1`), string(body))
	require.Contains(t, string(body), "deeplink_ws_sessions_active")
}
