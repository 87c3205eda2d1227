package money

import (
	"math"

	"github.com/shopspring/decimal"

	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
)

// MinorUnitPlaces is the number of fractional digits carried by settled
// amounts (cents for the round currencies supported today).
const MinorUnitPlaces = 2

// Money is a fixed-point currency amount. All engine results are Money;
// unitless quadratic-funding scores never enter this type.
type Money struct {
	dec decimal.Decimal
}

func Zero() Money {
	return Money{}
}

// FromDecimal wraps a decimal without a sign restriction. Marginal deltas
// are the only place a negative Money is meaningful.
func FromDecimal(d decimal.Decimal) Money {
	return Money{dec: d}
}

// NonNegative constructs a Money for contexts where the value must not be
// below zero (pools, contributions, allocations).
func NonNegative(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, domainerrors.ErrInvalidAmount
	}
	return Money{dec: d}, nil
}

// FromFloat rejects non-finite inputs and values finer than the minor
// unit before they can poison a computation.
func FromFloat(v float64) (Money, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Money{}, domainerrors.ErrInvalidAmount
	}
	m := Money{dec: decimal.NewFromFloat(v)}
	if !m.IsMinorUnitAligned() {
		return Money{}, domainerrors.ErrInvalidAmount
	}
	return m, nil
}

// Parse reads a decimal string such as "1000.00". Values carrying
// precision below the minor unit are rejected: they cannot be settled,
// and letting them in would break pool conservation downstream.
func Parse(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, domainerrors.ErrInvalidAmount
	}
	m := Money{dec: d}
	if !m.IsMinorUnitAligned() {
		return Money{}, domainerrors.ErrInvalidAmount
	}
	return m, nil
}

// ParseNonNegative is Parse restricted to the non-negative domain.
func ParseNonNegative(raw string) (Money, error) {
	m, err := Parse(raw)
	if err != nil {
		return Money{}, err
	}
	return NonNegative(m.dec)
}

func (m Money) Add(other Money) Money {
	return Money{dec: m.dec.Add(other.dec)}
}

func (m Money) Sub(other Money) Money {
	return Money{dec: m.dec.Sub(other.dec)}
}

func (m Money) Cmp(other Money) int {
	return m.dec.Cmp(other.dec)
}

func (m Money) Equal(other Money) bool {
	return m.dec.Equal(other.dec)
}

func (m Money) IsZero() bool {
	return m.dec.IsZero()
}

func (m Money) IsNegative() bool {
	return m.dec.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.dec.IsPositive()
}

// IsMinorUnitAligned reports whether the amount sits exactly on the
// minor-unit grid, i.e. carries no fraction below one cent.
func (m Money) IsMinorUnitAligned() bool {
	return m.dec.Equal(m.dec.Truncate(MinorUnitPlaces))
}

// Decimal exposes the exact underlying value for apportionment arithmetic.
func (m Money) Decimal() decimal.Decimal {
	return m.dec
}

// Float64 leaves the money domain; callers use it only to feed the unitless
// score computation.
func (m Money) Float64() float64 {
	v, _ := m.dec.Float64()
	return v
}

// String renders the amount with exactly the minor-unit precision, which
// keeps report serialization byte-stable across recomputations.
func (m Money) String() string {
	return m.dec.StringFixed(MinorUnitPlaces)
}

// MinorUnit is the smallest representable step (0.01).
func MinorUnit() decimal.Decimal {
	return decimal.New(1, -MinorUnitPlaces)
}
