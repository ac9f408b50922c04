// Package calc holds the pure commission decay formula. No I/O, no
// state: the same curve serves onboarding and referral cohorts.
package calc

import (
	"fmt"
	"math"
)

const (
	// BasePercentage is the commission on a cohort's first confirmed
	// booking.
	BasePercentage = 5.0
	// DecayStep is subtracted for every later booking in the cohort.
	DecayStep = 0.1
)

// ValidationError reports a contract violation by the caller: a cohort
// ordinal below 1 is a bug, not a business state.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Msg)
}

// Share returns the decayed commission percentage for the bookingNumber-th
// confirmed booking of a cohort: max(0, 5.0 - (bookingNumber-1) * 0.1).
// The curve reaches 0 at booking 51 and stays clamped there.
func Share(bookingNumber int) (float64, error) {
	if bookingNumber < 1 {
		return 0, &ValidationError{Field: "bookingNumber", Msg: "must be >= 1"}
	}
	pct := BasePercentage - float64(bookingNumber-1)*DecayStep
	if pct < 0 {
		pct = 0
	}
	return pct, nil
}

// Amount converts a percentage into the commission owed on a booking
// total, rounded to cents.
func Amount(totalPrice, percentage float64) float64 {
	return math.Round(totalPrice*percentage) / 100
}
