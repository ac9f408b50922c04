package calc_test

import (
	"testing"

	"ms-revenue/internal/revshare/calc"

	"github.com/stretchr/testify/assert"
)

func TestShareDecayCurve(t *testing.T) {
	// The full pre-floor range follows max(0, 5.0 - (n-1)*0.1)
	for n := 1; n <= 50; n++ {
		expected := calc.BasePercentage - float64(n-1)*calc.DecayStep
		if expected < 0 {
			expected = 0
		}

		pct, err := calc.Share(n)
		assert.NoError(t, err)
		assert.InDelta(t, expected, pct, 1e-9, "bookingNumber=%d", n)
	}
}

func TestShareBoundaries(t *testing.T) {
	pct, err := calc.Share(1)
	assert.NoError(t, err)
	assert.Equal(t, 5.0, pct)

	// The floor is hit exactly at booking 51
	pct, err = calc.Share(51)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, pct)

	// And holds for arbitrarily large ordinals
	pct, err = calc.Share(200)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, pct)

	pct, err = calc.Share(100000)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, pct)
}

func TestShareRejectsNonPositiveOrdinals(t *testing.T) {
	for _, n := range []int{0, -1, -50} {
		_, err := calc.Share(n)
		assert.Error(t, err, "bookingNumber=%d", n)

		var verr *calc.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestAmountRoundsToCents(t *testing.T) {
	// 1000 * 5.0% = 50.00
	assert.Equal(t, 50.0, calc.Amount(1000, 5.0))

	// 1000 * 0% = 0, never persisted by the processor
	assert.Equal(t, 0.0, calc.Amount(1000, 0))

	// 333.33 * 4.9% = 16.33317 → 16.33
	assert.Equal(t, 16.33, calc.Amount(333.33, 4.9))
}
