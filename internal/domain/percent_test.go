package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeclinePercent(t *testing.T) {
	cases := []struct {
		name    string
		failed  int64
		success int64
		want    string
	}{
		{name: "no_settled_operations", failed: 0, success: 0, want: "0.00"},
		{name: "one_of_three", failed: 1, success: 2, want: "33.33"},
		{name: "all_failed", failed: 5, success: 0, want: "100.00"},
		{name: "exact_two_decimals", failed: 1, success: 7, want: "12.50"},
		{name: "half_rounds_to_even_down", failed: 1, success: 799, want: "0.12"},
		{name: "half_rounds_to_even_up", failed: 3, success: 797, want: "0.38"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := DeclinePercent(tc.failed, tc.success)
			assert.Equal(t, tc.want, got.StringFixed(2))
		})
	}
}

func TestWithdrawalToDepositRatio(t *testing.T) {
	cases := []struct {
		name        string
		withdrawals string
		deposits    string
		want        string
	}{
		{name: "zero_withdrawals", withdrawals: "0", deposits: "500.00", want: "0.00"},
		{name: "zero_both", withdrawals: "0", deposits: "0", want: "0.00"},
		{name: "zero_deposits", withdrawals: "120.00", deposits: "0", want: "100.00"},
		{name: "quarter", withdrawals: "50.00", deposits: "200.00", want: "25.00"},
		{name: "above_hundred", withdrawals: "300.00", deposits: "200.00", want: "150.00"},
		{name: "rounded", withdrawals: "100.00", deposits: "300.00", want: "33.33"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w := decimal.RequireFromString(tc.withdrawals)
			d := decimal.RequireFromString(tc.deposits)
			got := WithdrawalToDepositRatio(w, d)
			assert.Equal(t, tc.want, got.StringFixed(2))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.00", FormatAmount(decimal.NewFromInt(10)))
	assert.Equal(t, "9.99", FormatAmount(decimal.RequireFromString("9.99")))
	assert.Equal(t, "1990.01", FormatAmount(decimal.RequireFromString("1990.01")))
}
