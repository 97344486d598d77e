package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAddArgs reads "<price> <amount>" from command tokens.
func ParseAddArgs(tokens []string) (price, amount decimal.Decimal, err error) {
	return parsePair(tokens, "price", "amount")
}

// ParseFixArgs reads "<price> <percent>" from command tokens. A trailing "%"
// on the percent is tolerated.
func ParseFixArgs(tokens []string) (price, percent decimal.Decimal, err error) {
	if len(tokens) >= 2 {
		tokens = append([]string{tokens[0], strings.TrimSuffix(tokens[1], "%")}, tokens[2:]...)
	}
	return parsePair(tokens, "price", "percent")
}

func parsePair(tokens []string, first, second string) (decimal.Decimal, decimal.Decimal, error) {
	if len(tokens) < 2 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("expected %s and %s, got %d value(s): %w", first, second, len(tokens), ErrMissingArgument)
	}
	a, err := ParseNumber(tokens[0])
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%s: %w", first, err)
	}
	b, err := ParseNumber(tokens[1])
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%s: %w", second, err)
	}
	return a, b, nil
}

// ParseNumber parses a user supplied number. A comma is accepted as the
// decimal separator.
func ParseNumber(token string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(token), ",", ".")
	if s == "" {
		return decimal.Zero, ErrMissingArgument
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", token, ErrNotNumeric)
	}
	if err := checkBounds(v); err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", token, err)
	}
	return v, nil
}

const (
	maxScale  = 18
	maxDigits = 36
)

var maxMagnitude = decimal.New(1, 15)

// checkBounds keeps a value small enough for exact arithmetic. The exponent is
// checked before anything that would rescale the coefficient.
func checkBounds(v decimal.Decimal) error {
	if v.Exponent() > maxScale || v.Exponent() < -maxScale {
		return ErrOutOfBounds
	}
	if v.NumDigits() > maxDigits {
		return ErrOutOfBounds
	}
	if v.Abs().GreaterThan(maxMagnitude) {
		return ErrOutOfBounds
	}
	return nil
}
