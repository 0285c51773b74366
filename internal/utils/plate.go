package utils

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePlate uppercases a plate and strips everything that is not a
// letter or digit, so "abc-1234" and "ABC 1234" compare equal.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(plate) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatSpotID renders a spot identifier the way the capture backend expects
// it in URL paths: zero-padded to two digits.
func FormatSpotID(id int) string {
	return fmt.Sprintf("%02d", id)
}
