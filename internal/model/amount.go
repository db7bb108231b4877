package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a reported quantity that may carry thousands
// separators. Blank or malformed input yields an invalid (NULL) decimal.
func ParseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
