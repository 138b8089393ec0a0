package identity

import "strings"

// MaxUserIDLen bounds user ids before any decoding work is done.
// SS58 addresses for 32-byte keys are 47-49 characters.
const MaxUserIDLen = 64

// NormalizeUserID trims surrounding whitespace. Addresses are case-sensitive.
func NormalizeUserID(s string) string {
	return strings.TrimSpace(s)
}
