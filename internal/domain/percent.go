package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DeclinePercent computes failed/(success+failed)*100 rounded to two
// fractional digits half-to-even. A zero denominator yields zero.
func DeclinePercent(failed, success int64) decimal.Decimal {
	total := failed + success
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(failed).
		Mul(hundred).
		Div(decimal.NewFromInt(total)).
		RoundBank(2)
}

// WithdrawalToDepositRatio computes withdrawals/deposits*100 rounded to two
// fractional digits half-to-even. Zero withdrawals yield 0 regardless of
// deposits; zero deposits with non-zero withdrawals yield 100.
func WithdrawalToDepositRatio(withdrawals, deposits decimal.Decimal) decimal.Decimal {
	if withdrawals.IsZero() {
		return decimal.Zero
	}
	if deposits.IsZero() {
		return hundred
	}
	return withdrawals.Mul(hundred).Div(deposits).RoundBank(2)
}

// FormatAmount renders a monetary value with two fractional digits, the
// format used in alert trigger messages.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
