package priceparse

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotNumeric is returned when the input has no numeric remainder after
// stripping currency tokens and separators.
var ErrNotNumeric = errors.New("priceparse: not a numeric price")

// currencyTokens are stripped before parsing. Storefronts mix the lira sign
// with the literal "TL"; catalog rows may carry ISO codes.
var currencyTokens = []string{"TRY", "TL", "EUR", "₺", "€"}

// Parse converts locale-formatted price text to an exact decimal amount.
//
// Accepted shapes after stripping whitespace and currency tokens:
//   - Turkish locale: dot thousands separators with a comma decimal point,
//     e.g. "1.234,56" -> 1234.56
//   - plain dot-decimal, e.g. "1234.56" -> 1234.56
//
// Parse is idempotent on already-normalized strings: Parse("1234.56")
// round-trips to the same value.
func Parse(raw string) (decimal.Decimal, error) {
	s := stripTokens(raw)
	if s == "" {
		return decimal.Decimal{}, ErrNotNumeric
	}
	if strings.Contains(s, ",") {
		// Comma is the decimal point; dots are thousands separators.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		if strings.Contains(s, ",") {
			return decimal.Decimal{}, ErrNotNumeric
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrNotNumeric
	}
	return d, nil
}

func stripTokens(raw string) string {
	s := raw
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	// Drop all whitespace, including non-breaking spaces used by some sites.
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ' ':
			return -1
		}
		return r
	}, s)
}
