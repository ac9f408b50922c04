package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Attribution paths. The decay formula is shared; the cohorts are
// independent (per host for ONBOARDING, per referral code for REFERRAL).
const (
	ShareTypeOnboarding = "ONBOARDING"
	ShareTypeReferral   = "REFERRAL"
)

const (
	ShareStatusPending = "PENDING"
	ShareStatusPaid    = "PAID"
)

// RevenueShare is one ledger row: a commission owed to a moderator for a
// confirmed booking. Rows are immutable except for the PENDING→PAID
// status flip performed by the payout flow. The unique index on
// (booking_id, share_type) makes duplicate confirmation deliveries a
// no-op.
type RevenueShare struct {
	bun.BaseModel `bun:"table:revenue_shares"`

	ID          string `bun:"id,pk" json:"id"`
	ModeratorID string `bun:"moderator_id,notnull" json:"moderator_id"`
	BookingID   string `bun:"booking_id,notnull,unique:uq_revenue_shares_booking_share_type" json:"booking_id"`
	ShareType   string `bun:"share_type,notnull,unique:uq_revenue_shares_booking_share_type" json:"share_type"`
	// BookingNumber is the 1-based ordinal of the booking within its
	// cohort; it drives the decay.
	BasePercentage   float64    `bun:"base_percentage,notnull" json:"base_percentage"`
	BookingNumber    int        `bun:"booking_number,notnull" json:"booking_number"`
	ActualPercentage float64    `bun:"actual_percentage,notnull" json:"actual_percentage"`
	Amount           float64    `bun:"amount,notnull" json:"amount"`
	Status           string     `bun:"status,notnull" json:"status"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	PaidAt           *time.Time `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
}

// CohortCounter hands out cohort ordinals without re-scanning booking
// history. The upsert-increment locks the row for the duration of the
// surrounding transaction, which is what serializes concurrent
// confirmations within a cohort.
type CohortCounter struct {
	bun.BaseModel `bun:"table:cohort_counters"`

	ShareType   string `bun:"share_type,pk" json:"share_type"`
	CohortKey   string `bun:"cohort_key,pk" json:"cohort_key"`
	NextOrdinal int    `bun:"next_ordinal,notnull" json:"next_ordinal"`
}
