package domain

import (
	"github.com/shopspring/decimal"
)

// Money is a decimal amount rendered in JSON as a bare number.
// Provider payloads send amounts both as strings ("10.00") and numbers;
// decoding accepts either.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MoneyFromString parses s, returning zero for blank or malformed input.
func MoneyFromString(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Decimal: decimal.Zero}
	}
	return Money{Decimal: d}
}

// MarshalJSON renders the amount unquoted.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts quoted and unquoted numbers; null and "" decode to zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.UnmarshalJSON(data)
}

// Round2 rounds half away from zero to two decimal places.
func (m Money) Round2() Money {
	return Money{Decimal: m.Decimal.Round(2)}
}

// SumMoney adds every value returned by pick.
func SumMoney[T any](items []T, pick func(T) Money) Money {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(pick(it).Decimal)
	}
	return Money{Decimal: total}
}
