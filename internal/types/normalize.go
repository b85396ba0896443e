package types

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// FoldASCII decomposes s (NFKD) and drops every rune outside ASCII, so
// "Cenário" becomes "Cenario" and "naïve ✓" becomes "naive ".
// The transform is lossy and one-way.
func FoldASCII(s string) string {
	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	return b.String()
}
