package shared

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")
	ErrAmountPrecision = errors.New("amount has more decimal places than the currency allows")
	ErrAmountOverflow  = errors.New("amount does not fit in minor units")
)

// currencyExponents lists ISO 4217 currencies whose minor unit is not 1/100.
var currencyExponents = map[string]int32{
	"BHD": 3,
	"CLP": 0,
	"ISK": 0,
	"JOD": 3,
	"JPY": 0,
	"KRW": 0,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// CurrencyExponent returns the number of minor-unit digits for a currency.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// NormalizeCurrency upper-cases and validates a 3-letter currency code.
func NormalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return currency, nil
}

// ToMinorUnits converts a decimal amount to integer minor units of the currency.
// Amounts carrying more precision than the currency supports are rejected.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	scaled := amount.Shift(CurrencyExponent(currency))
	if !scaled.IsInteger() {
		return 0, ErrAmountPrecision
	}
	if scaled.Abs().GreaterThan(maxMinorUnits) {
		return 0, ErrAmountOverflow
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts integer minor units back to a decimal amount.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyExponent(currency))
}

// FormatMinor renders minor units with the currency's fixed number of decimals.
func FormatMinor(minor int64, currency string) string {
	return FromMinorUnits(minor, currency).StringFixed(CurrencyExponent(currency))
}

// ToleranceInMinorUnits converts a tolerance in currency units to whole minor
// units of the currency, rounding down. 0.01 is one cent for EUR, zero yen for
// JPY and ten fils for BHD.
func ToleranceInMinorUnits(tolerance decimal.Decimal, currency string) int64 {
	minor := tolerance.Shift(CurrencyExponent(currency)).Floor()
	if minor.IsNegative() {
		return 0
	}
	if minor.GreaterThan(maxMinorUnits) {
		return math.MaxInt64
	}
	return minor.IntPart()
}

// WithinTolerance reports whether a and b differ by at most tolerance minor units.
func WithinTolerance(a, b, tolerance int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
