package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, PrettyOptions{Level: slog.LevelDebug, NoColor: true}))

	log.With("conn_id", "01J0").WithGroup("req").Info("auth.login.ok",
		"method", "login",
		"code", 0,
		"duration_ms", int64(12),
		"note", "two words",
	)

	line := buf.String()
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("NoColor output contains ANSI escapes: %q", line)
	}
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=auth.login.ok",
		"conn_id=01J0",
		"req.method=login",
		"req.code=0",
		`req.note="two words"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line must end with newline: %q", line)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, PrettyOptions{Level: slog.LevelWarn, NoColor: true}))

	log.Info("dropped")
	log.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Fatalf("info record passed warn filter: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "lvl=[WARN] msg=kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestPrettyHandler_KnownKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, PrettyOptions{NoColor: true}))
	log.Info("http.request", "method", "get", "status_class", "2xx", "duration_ms", int64(7))

	line := buf.String()
	for _, want := range []string{"method=GET", "class=2xx", "duration=7ms"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestColorizeProtocolCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code int64
		want string
	}{
		{code: 0, want: ansiGreen},
		{code: 1003, want: ansiYellow},
		{code: 2001, want: ansiRed},
	}
	for _, tc := range cases {
		got := colorizeProtocolCode(tc.code, true)
		if !strings.HasPrefix(got, tc.want) || !strings.HasSuffix(got, ansiReset) {
			t.Fatalf("colorizeProtocolCode(%d)=%q want prefix %q", tc.code, got, tc.want)
		}
		if plain := colorizeProtocolCode(tc.code, false); strings.Contains(plain, "\x1b[") {
			t.Fatalf("colorizeProtocolCode(%d, false)=%q contains escapes", tc.code, plain)
		}
	}
}

func TestValueToInt64(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     slog.Value
		want   int64
		wantOK bool
	}{
		{in: slog.Int64Value(-3), want: -3, wantOK: true},
		{in: slog.Uint64Value(1004), want: 1004, wantOK: true},
		{in: slog.StringValue(" 2002 "), want: 2002, wantOK: true},
		{in: slog.StringValue("n/a"), wantOK: false},
		{in: slog.BoolValue(true), wantOK: false},
	}
	for _, tc := range cases {
		got, ok := valueToInt64(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("valueToInt64(%v)=(%d,%v) want (%d,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}
