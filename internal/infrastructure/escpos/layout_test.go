package escpos

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPair(t *testing.T) {
	t.Run("fits on one line", func(t *testing.T) {
		lines := Pair("Subtotal:", "100.00", 48)
		require.Len(t, lines, 1)
		assert.Len(t, lines[0], 48)
		assert.True(t, strings.HasPrefix(lines[0], "Subtotal:"))
		assert.True(t, strings.HasSuffix(lines[0], "100.00"))
	})

	t.Run("wraps when too long", func(t *testing.T) {
		left := strings.Repeat("L", 50)
		lines := Pair(left, "5.00", 48)
		require.Len(t, lines, 2)
		assert.Equal(t, left, lines[0], "left text is never truncated")
		assert.Len(t, lines[1], 48)
		assert.Equal(t, strings.Repeat(" ", 44)+"5.00", lines[1])
	})

	t.Run("exact width wraps", func(t *testing.T) {
		left := strings.Repeat("L", 44)
		lines := Pair(left, "5.00", 48)
		require.Len(t, lines, 2)
	})

	t.Run("one short of width stays on one line", func(t *testing.T) {
		left := strings.Repeat("L", 43)
		lines := Pair(left, "5.00", 48)
		require.Len(t, lines, 1)
		assert.Equal(t, left+" 5.00", lines[0])
	})
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"40", "40.00"},
		{"2.5", "2.50"},
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"-1.005", "-1.01"},
		{"0", "0.00"},
		{"1234567.899", "1234567.90"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, Money(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "Rs. 42.00", Amount("Rs.", decimal.NewFromInt(42)))
	assert.Equal(t, "42.00", Amount("", decimal.NewFromInt(42)))
}

func TestRuleAndPadLeft(t *testing.T) {
	assert.Equal(t, strings.Repeat("-", 48), Rule(48))
	assert.Equal(t, "  ab", PadLeft("ab", 4))
	assert.Equal(t, "abcdef", PadLeft("abcdef", 4))
}
