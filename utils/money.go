package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatAmount renders amount in the workbench currency, e.g. ₹8,000.00.
func FormatAmount(amount decimal.Decimal, currencyCode string) string {
	c := money.GetCurrency(currencyCode)
	if c == nil {
		return currencyCode + " " + amount.StringFixed(2)
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return money.New(minor, c.Code).Display()
}
