// Package money parses and formats integer minor-unit amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
)

// ParseAmount accepts a JSON number or numeric string and returns it as minor
// units. Fractions, non-positive values and values outside int64 are rejected.
func ParseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: amount is required", ledger.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ledger.ErrInvalidAmount, raw)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s has a fractional part", ledger.ErrInvalidAmount, raw)
	}
	if !d.IsPositive() {
		return 0, ledger.ErrInvalidAmount
	}
	n := d.BigInt()
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: %s is out of range", ledger.ErrInvalidAmount, raw)
	}
	return n.Int64(), nil
}

// Formatter renders minor units for people, e.g. 150 with exponent 2 as ₦1.50.
type Formatter struct {
	Symbol   string
	Exponent int32
}

func (f Formatter) Format(minor int64) string {
	return f.Symbol + decimal.New(minor, -f.Exponent).StringFixed(f.Exponent)
}
