package device

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// IDMin and IDMax bound device ids: [IDMin, IDMax).
	IDMin uint64 = 100_000_000
	IDMax uint64 = 1_000_000_000

	// IDLen is the decimal length of every device id.
	IDLen = 9

	maxNameRunes = 128
	maxMACLen    = 64
)

// Record is a registered device.
type Record struct {
	DeviceID   string
	DeviceName string
	MAC        string
	Online     bool
	AddTime    time.Time
	UpdateTime time.Time
}

// RegisterInput is the caller-provided part of a new Record.
type RegisterInput struct {
	DeviceName string
	MAC        string
	Now        time.Time
}

// Normalize trims fields and upper-cases the MAC.
func (in RegisterInput) Normalize() RegisterInput {
	in.DeviceName = strings.TrimSpace(in.DeviceName)
	in.MAC = strings.ToUpper(strings.TrimSpace(in.MAC))
	return in
}

// Validate checks a normalized input.
func (in RegisterInput) Validate() error {
	if in.DeviceName == "" || utf8.RuneCountInString(in.DeviceName) > maxNameRunes {
		return ErrInvalidInput
	}
	if in.MAC == "" || len(in.MAC) > maxMACLen {
		return ErrInvalidInput
	}
	return nil
}

// FormatID renders a drawn value as a device id string.
func FormatID(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// ValidID reports whether s is a well-formed device id (9 digits, no leading zero).
func ValidID(s string) bool {
	if len(s) != IDLen {
		return false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return false
	}
	return n >= IDMin && n < IDMax
}
