package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking statuses as written by the booking workflow. Only CONFIRMED
// bookings participate in revenue share attribution.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingCompleted = "COMPLETED"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID       string `bun:"id,pk" json:"id"`
	DinnerID string `bun:"dinner_id,notnull" json:"dinner_id"`
	GuestID  string `bun:"guest_id,notnull" json:"guest_id"`
	Status   string `bun:"status,notnull" json:"status"`
	Seats    int    `bun:"seats,notnull,default:1" json:"seats"`
	// TotalPrice is the amount the guest paid for the whole booking.
	TotalPrice float64 `bun:"total_price,notnull" json:"total_price"`
	// ReferralCodeUsed is a copy of the code string captured at booking
	// time, not a foreign key. It survives the code being reassigned.
	ReferralCodeUsed string    `bun:"referral_code_used,nullzero" json:"referral_code_used,omitempty"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Dinner *Dinner `bun:"rel:belongs-to,join:dinner_id=id" json:"-"`
}
