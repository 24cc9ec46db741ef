package types

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrOverflow is returned by checked arithmetic when the result would exceed
// the representable range.
var ErrOverflow = errors.New("types: amount overflow")

// ErrUnderflow is returned by checked subtraction when it would produce a
// negative amount.
var ErrUnderflow = errors.New("types: amount underflow")

// Amount is a non-negative fixed-point integer denominated in an asset's
// smallest unit (cents for IUSD, wei-like base units for crypto assets).
// Amount carries no currency tag of its own; the surrounding entity (a
// balance, a ledger entry) is responsible for tagging it with an asset.
type Amount struct {
	units uint64
}

// Zero is the additive identity.
var Zero = Amount{}

// NewAmount constructs an Amount from a non-negative unit count.
func NewAmount(units uint64) Amount {
	return Amount{units: units}
}

// Units returns the raw smallest-unit representation.
func (a Amount) Units() uint64 { return a.units }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.units == 0 }

// CheckedAdd returns a+b, or ErrOverflow if the sum would exceed the
// representable range.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	if a.units > math.MaxUint64-b.units {
		return Amount{}, ErrOverflow
	}
	return Amount{units: a.units + b.units}, nil
}

// CheckedSub returns a-b, or ErrUnderflow if b > a.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	if b.units > a.units {
		return Amount{}, ErrUnderflow
	}
	return Amount{units: a.units - b.units}, nil
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.units < b.units:
		return -1
	case a.units > b.units:
		return 1
	default:
		return 0
	}
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// CheckedMulRatio computes a * numerator / denominator exactly (via
// arbitrary-precision intermediate math) and fails if the result does not
// fit back into a uint64.
func (a Amount) CheckedMulRatio(numerator, denominator uint64) (Amount, error) {
	if denominator == 0 {
		return Amount{}, fmt.Errorf("types: division by zero")
	}
	product := new(big.Int).Mul(
		new(big.Int).SetUint64(a.units),
		new(big.Int).SetUint64(numerator),
	)
	quotient := new(big.Int).Quo(product, new(big.Int).SetUint64(denominator))
	if !quotient.IsUint64() {
		return Amount{}, ErrOverflow
	}
	return Amount{units: quotient.Uint64()}, nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%d", a.units)
}
