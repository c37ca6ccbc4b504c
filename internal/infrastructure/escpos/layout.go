package escpos

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Width is the character width of Font A on 80mm paper
const Width = 48

// Pair lays out a label and a value on one line of width w, padding
// between them. When they do not fit, the label is printed on its own
// line and the value right-justified on the next. Nothing is truncated.
func Pair(left, right string, w int) []string {
	if len(left)+len(right) >= w {
		return []string{left, PadLeft(right, w)}
	}
	return []string{left + strings.Repeat(" ", w-len(left)-len(right)) + right}
}

// PadLeft right-justifies s in a field of width w
func PadLeft(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return strings.Repeat(" ", w-len(s)) + s
}

// Rule returns a separator of w dashes
func Rule(w int) string {
	return strings.Repeat("-", w)
}

// Money formats d with exactly two decimals, rounding half away from zero
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Amount prefixes a formatted figure with a currency code, if any
func Amount(currency string, d decimal.Decimal) string {
	if currency == "" {
		return Money(d)
	}
	return currency + " " + Money(d)
}
