// Package phone canonicalizes phone numbers for comparison and dialing.
package phone

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// Normalize strips every non-digit and rewrites the domestic trunk prefix
// of 11-digit numbers ("8XXXXXXXXXX") to the country code 7. The result is
// the canonical form used for equality.
func Normalize(raw string) string {
	digits := digitsOnly(raw)
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	return digits
}

// Equal reports whether two raw numbers canonicalize to the same non-empty value.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

// FormatE164 renders the outbound leg format "+<digits>". Numbers the
// metadata recognizes go through libphonenumber; anything else falls back
// to the plain canonical digits.
func FormatE164(raw string) string {
	digits := Normalize(raw)
	if digits == "" {
		return ""
	}
	num, err := libphonenumber.Parse("+"+digits, "")
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "+" + digits
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

// Extension strips an agent extension down to its digits.
func Extension(raw string) string {
	return digitsOnly(raw)
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
