package escpos

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var currencyReplacer = strings.NewReplacer(
	"₹", "Rs.",
	"€", "EUR",
	"£", "GBP",
	"$", "USD",
)

// unprintable matches runes outside printable ASCII. Control bytes such as
// ESC and GS would otherwise reach the printer as commands.
var unprintable = runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII || r < 0x20 || r == 0x7F
})

func blankWhitespace(r rune) rune {
	switch r {
	case '\t', '\n', '\r':
		return ' '
	}
	return r
}

// Sanitize makes s safe for a single-byte printer code page and a single
// line. Known currency glyphs become three-letter codes, accented letters
// lose their marks, tabs and line breaks become spaces, and anything else
// outside printable ASCII is dropped.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	replaced := currencyReplacer.Replace(s)

	t := transform.Chain(norm.NFD, runes.Map(blankWhitespace), runes.Remove(unprintable))
	out, _, err := transform.String(t, replaced)
	if err != nil {
		return stripUnprintable(replaced)
	}
	return out
}

func stripUnprintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := blankWhitespace(rune(s[i]))
		if !unprintable.Contains(c) {
			b.WriteByte(byte(c))
		}
	}
	return b.String()
}
