package escpos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"empty", "", ""},
		{"plain ascii", "Masala Tea x2", "Masala Tea x2"},
		{"rupee", "₹100", "Rs.100"},
		{"euro pound dollar", "€5 £3 $2", "EUR5 GBP3 USD2"},
		{"accents folded", "Café Crème", "Cafe Creme"},
		{"cjk dropped", "Tea 日本", "Tea "},
		{"emoji dropped", "Hot 🌶️!", "Hot !"},
		{"invalid utf8 dropped", "a\xffb", "ab"},
		{"tab becomes space", "a\tb", "a b"},
		{"line breaks become spaces", "extra spicy\r\nno onion", "extra spicy  no onion"},
		{"escape sequence stripped", "Tea\x1b@\x1bd\x05", "Tea@d"},
		{"cut command stripped", "Note\x1dV\x00", "NoteV"},
		{"del stripped", "a\x7fb", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.in))
		})
	}
}

func TestSanitize_CurrencyCodesOncePerGlyph(t *testing.T) {
	tests := []struct {
		glyph string
		code  string
	}{
		{"₹", "Rs."},
		{"€", "EUR"},
		{"£", "GBP"},
		{"$", "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			in := "Total " + tt.glyph + "5, tip " + tt.glyph + "1 ü 中"
			out := Sanitize(in)
			assert.Equal(t, 2, strings.Count(out, tt.code))
			for i := 0; i < len(out); i++ {
				assert.LessOrEqual(t, out[i], byte(0x7F))
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{"", "₹ 40", "Café €", "日本 $", "plain", "a\xffb £", "a\tb\x1b@"}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}
