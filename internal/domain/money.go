package domain

import "github.com/shopspring/decimal"

// FormatPrice renders minor currency units with two fraction digits.
func FormatPrice(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
