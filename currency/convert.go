// Package currency holds TON/PRED conversion and deposit validation helpers.
package currency

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Converter converts between TON and PRED at a fixed integer rate.
type Converter struct {
	rate decimal.Decimal
}

// NewConverter creates a converter. rate is how many PRED one TON is worth.
func NewConverter(tonToPredRate int64) (*Converter, error) {
	if tonToPredRate <= 0 {
		return nil, fmt.Errorf("conversion rate must be positive, got %d", tonToPredRate)
	}
	return &Converter{rate: decimal.NewFromInt(tonToPredRate)}, nil
}

// TonToPred converts a TON amount to PRED, rounded to two places.
func (c *Converter) TonToPred(ton decimal.Decimal) decimal.Decimal {
	return ton.Mul(c.rate).Round(2)
}

// PredToTon converts a PRED amount to TON, rounded to two places.
func (c *Converter) PredToTon(pred decimal.Decimal) decimal.Decimal {
	return pred.Div(c.rate).Round(2)
}

// ValidateDeposit checks a TON deposit amount against the configured bounds.
func ValidateDeposit(amount, min, max decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive, got %s", amount)
	}
	if amount.LessThan(min) {
		return fmt.Errorf("deposit %s is below the minimum of %s TON", amount, min)
	}
	if amount.GreaterThan(max) {
		return fmt.Errorf("deposit %s is above the maximum of %s TON", amount, max)
	}
	return nil
}

var (
	// User-friendly form: EQ/UQ/kQ prefix plus 46 base64url characters.
	friendlyAddressRe = regexp.MustCompile(`^(EQ|UQ|kQ)[A-Za-z0-9_-]{46}$`)
	// Raw form: workchain id, colon, 64 hex characters.
	rawAddressRe = regexp.MustCompile(`^-?\d+:[0-9a-fA-F]{64}$`)
)

// ValidTonAddress reports whether the string looks like a TON wallet
// address in either the user-friendly or the raw form.
func ValidTonAddress(address string) bool {
	return friendlyAddressRe.MatchString(address) || rawAddressRe.MatchString(address)
}
