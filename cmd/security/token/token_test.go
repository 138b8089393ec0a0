package token

import (
	"errors"
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	if got := Fingerprint(""); got != "" {
		t.Fatalf("Fingerprint(\"\")=%q want empty", got)
	}

	a := Fingerprint("header.payload.signature")
	b := Fingerprint("header.payload.signature")
	c := Fingerprint("header.payload.other")

	if len(a) != fingerprintHexLen {
		t.Fatalf("len=%d want %d", len(a), fingerprintHexLen)
	}
	if a != b {
		t.Fatalf("fingerprint not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("distinct tokens share fingerprint %q", a)
	}
	if strings.Contains("header.payload.signature", a) {
		t.Fatalf("fingerprint leaks token content")
	}
}

func TestSigningKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "missing", raw: "", wantErr: ErrSigningKeyMissing},
		{name: "blank", raw: "   ", wantErr: ErrSigningKeyMissing},
		{name: "short", raw: "deadbeef", wantErr: ErrSigningKeyTooShort},
		{name: "ok", raw: strings.Repeat("k", MinSecretBytes)},
		{name: "ok trimmed", raw: " " + strings.Repeat("k", MinSecretBytes) + " "},
	}

	for _, tc := range cases {
		key, err := SigningKey(tc.raw, MinSecretBytes)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: err=%v want %v", tc.name, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if len(key) != MinSecretBytes {
			t.Fatalf("%s: len(key)=%d want %d", tc.name, len(key), MinSecretBytes)
		}
	}
}
