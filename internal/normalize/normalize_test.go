package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonetary(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1234.56", "1234.56"},
		{"1.500,00", "1500"},
		{"€ 1.500,00", "1500"},
		{"R$ 2.345,10", "2345.1"},
		{"1,50", "1.5"},
		{"1.234.567,89", "1234567.89"},
		{"1,234,567.89", "1234567.89"},
		{"-250,00", "-250"},
		{"0", "0"},
		{"", "0"},
		{"#NAME?", "0"},
		{"n/a", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			want, err := decimal.NewFromString(tc.want)
			require.NoError(t, err)
			got := Monetary(tc.in)
			assert.True(t, got.Equal(want), "Monetary(%q) = %s, want %s", tc.in, got, want)
		})
	}
}

func TestDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-05", "2024-03-05", true},
		{"05/03/2024", "2024-03-05", true},
		{"05-03-2024", "2024-03-05", true},
		{"5/6/2024", "2024-06-05", true},
		{"2024-06-01T00:00:00Z", "2024-06-01", true},
		{"", "", false},
		{"not a date", "", false},
		{"31/02/2024", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := Date(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDate_SpreadsheetSerial(t *testing.T) {
	got, ok := Date("45000")
	require.True(t, ok)
	assert.Equal(t, "2023-03-15", got)

	// the Unix epoch itself is serial 25569
	got, ok = Date("25569")
	require.True(t, ok)
	assert.Equal(t, "1970-01-01", got)

	// small and huge numbers are amounts or garbage, not dates
	_, ok = Date("1500")
	assert.False(t, ok)
	_, ok = Date("99999999")
	assert.False(t, ok)
}

func TestTruncate(t *testing.T) {
	assert.Nil(t, Truncate("", 10))
	assert.Nil(t, Truncate("   ", 10))

	got := Truncate("abcdef", 4)
	require.NotNil(t, got)
	assert.Equal(t, "abcd", *got)

	got = Truncate("abc", 10)
	require.NotNil(t, got)
	assert.Equal(t, "abc", *got)

	// rune-aware: multi-byte characters count as one
	got = Truncate("ação!", 4)
	require.NotNil(t, got)
	assert.Equal(t, "ação", *got)
}
