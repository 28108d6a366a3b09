package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRound2AwayFromZero(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"-1.005", "-1.01"},
		{"-1.004", "-1.00"},
		{"2.675", "2.68"},
		{"0", "0.00"},
		{"700000", "700000.00"},
	}
	for _, tt := range tests {
		if got := Round2AwayFromZero(dec(tt.in)); got.StringFixed(Scale) != tt.want {
			t.Errorf("Round2AwayFromZero(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRound2Bankers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.00"},
		{"1.015", "1.02"},
		{"1.025", "1.02"},
		{"-1.005", "-1.00"},
	}
	for _, tt := range tests {
		if got := Round2Bankers(dec(tt.in)); got.StringFixed(Scale) != tt.want {
			t.Errorf("Round2Bankers(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		amount string
		pct    string
		want   string
	}{
		{"1000000", "70", "700000"},
		{"1000000", "9", "90000"},
		{"800000", "10", "80000"},
		{"0", "70", "0"},
	}
	for _, tt := range tests {
		if got := Percent(dec(tt.amount), dec(tt.pct)); !got.Equal(dec(tt.want)) {
			t.Errorf("Percent(%s, %s) = %s, want %s", tt.amount, tt.pct, got, tt.want)
		}
	}
}
