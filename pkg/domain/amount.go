package domain

import (
	"strings"

	"github.com/holiman/uint256"

	dErrors "trustee/pkg/domain-errors"
)

// Amount is a 256-bit unsigned token quantity in base units. All vesting
// arithmetic truncates toward zero, which unsigned integers give us for free.
type Amount = uint256.Int

// ParseAmount constructs an Amount from a decimal string at trust boundaries.
//
// Errors: returns CodeInvalidInput when the value is empty, non-numeric,
// or exceeds 256 bits.
func ParseAmount(s string) (*Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount cannot be empty")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be an unsigned decimal integer")
	}
	return v, nil
}

// NewAmount wraps a uint64 as an Amount. Test and wiring convenience.
func NewAmount(v uint64) *Amount {
	return uint256.NewInt(v)
}
