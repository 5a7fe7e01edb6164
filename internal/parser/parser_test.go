package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullMessage(t *testing.T) {
	raw := "Rs.1,250.50 credited to A/c XX1234 from 900****910 for UPI, RRN: 425512345678, topup /GPay"

	p := Parse(raw)

	require.NotNil(t, p.AmountPaisa)
	assert.Equal(t, int64(125050), *p.AmountPaisa)
	assert.Equal(t, "910", p.Last3Digits)
	assert.Equal(t, "425512345678", p.RRN)
	assert.Equal(t, "topup", p.Remark)
	assert.Equal(t, "GPay", p.Method)
}

func TestParseAmountVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"Rs 500 received", 50000},
		{"rs. 99.50 credited", 9950},
		{"Received Rs.10,000.00 in your account", 1000000},
	}
	for _, tt := range tests {
		p := Parse(tt.raw)
		require.NotNil(t, p.AmountPaisa, tt.raw)
		assert.Equal(t, tt.want, *p.AmountPaisa, tt.raw)
	}
}

func TestParseLast3Priority(t *testing.T) {
	// Masked-digits pattern wins over the "from ... for" fallback.
	p := Parse("Rs.100 from 98XXXXX910 for something from abc123 for else")
	assert.Equal(t, "910", p.Last3Digits)

	p = Parse("credited from XXX****456 today")
	assert.Equal(t, "456", p.Last3Digits)

	p = Parse("Rs.100 received from acct789 for order")
	assert.Equal(t, "789", p.Last3Digits)
}

func TestParseMissingFields(t *testing.T) {
	p := Parse("hello there, nothing useful")
	assert.Nil(t, p.AmountPaisa)
	assert.Empty(t, p.Last3Digits)
	assert.Empty(t, p.RRN)
}

func TestParseRRNFormats(t *testing.T) {
	assert.Equal(t, "ABC123", Parse("payment done RRN:ABC123").RRN)
	assert.Equal(t, "987654", Parse("ref rrn - 987654 ok").RRN)
	assert.Equal(t, "425599", Parse("UPI RRN 425599").RRN)
}

func TestFingerprintStableAcrossWhitespace(t *testing.T) {
	a := Fingerprint("  Rs.100 credited  ")
	b := Fingerprint("Rs.100 credited")
	c := Fingerprint("Rs.101 credited")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
