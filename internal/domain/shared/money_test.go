package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	testCases := []struct {
		name      string
		amount    string
		currency  string
		expected  int64
		expectErr error
	}{
		{"EuroCents", "100.00", "EUR", 10000, nil},
		{"SingleDecimal", "999.9", "EUR", 99990, nil},
		{"WholeYen", "1500", "JPY", 1500, nil},
		{"ThreeDecimalDinar", "1.234", "KWD", 1234, nil},
		{"LowercaseCurrency", "0.01", "usd", 1, nil},
		{"TooPrecise", "10.001", "EUR", 0, ErrAmountPrecision},
		{"FractionalYen", "10.5", "JPY", 0, ErrAmountPrecision},
		{"Overflow", "999999999999999999999", "EUR", 0, ErrAmountOverflow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			minor, err := ToMinorUnits(decimal.RequireFromString(tc.amount), tc.currency)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, minor)
		})
	}
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "100.00", FormatMinor(10000, "EUR"))
	assert.Equal(t, "999.99", FormatMinor(99999, "EUR"))
	assert.Equal(t, "-0.50", FormatMinor(-50, "USD"))
	assert.Equal(t, "1500", FormatMinor(1500, "JPY"))
	assert.True(t, FromMinorUnits(5000, "USD").Equal(decimal.RequireFromString("50")))
}

func TestNormalizeCurrency(t *testing.T) {
	c, err := NormalizeCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", c)

	_, err = NormalizeCurrency("EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = NormalizeCurrency("E1R")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(100000, 99999, 1))
	assert.True(t, WithinTolerance(99999, 100000, 1))
	assert.True(t, WithinTolerance(500, 500, 0))
	assert.False(t, WithinTolerance(100000, 95000, 1))
	assert.False(t, WithinTolerance(100000, 99998, 1))
}

func TestToleranceInMinorUnits(t *testing.T) {
	cent := decimal.RequireFromString("0.01")

	assert.Equal(t, int64(1), ToleranceInMinorUnits(cent, "EUR"))
	assert.Equal(t, int64(0), ToleranceInMinorUnits(cent, "JPY"))
	assert.Equal(t, int64(10), ToleranceInMinorUnits(cent, "BHD"))
	assert.Equal(t, int64(1), ToleranceInMinorUnits(decimal.RequireFromString("1"), "KRW"))
	assert.Equal(t, int64(1), ToleranceInMinorUnits(decimal.RequireFromString("0.019"), "USD"))
	assert.Equal(t, int64(0), ToleranceInMinorUnits(decimal.RequireFromString("-0.05"), "EUR"))
}
