// Package phi handles display masking of protected health information.
// Masking is presentation-only: stored values are never altered, and search
// always runs against the unmasked record.
package phi

// Token replaces a masked value in API responses
const Token = "•••"

// Mask returns the masking token when masking is on, otherwise the value
// unchanged. Masking is all-or-nothing per value; no partial reveals.
func Mask(on bool, value string) string {
	if !on {
		return value
	}
	return Token
}
