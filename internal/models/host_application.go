package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ApplicationPending  = "PENDING"
	ApplicationApproved = "APPROVED"
	ApplicationRejected = "REJECTED"
)

// HostApplication records a host's onboarding request. An onboarding
// share is only eligible when the application is APPROVED and
// OnboardedByID names the approving moderator.
type HostApplication struct {
	bun.BaseModel `bun:"table:host_applications"`

	ID            string    `bun:"id,pk" json:"id"`
	HostID        string    `bun:"host_id,notnull" json:"host_id"`
	Status        string    `bun:"status,notnull" json:"status"`
	OnboardedByID string    `bun:"onboarded_by_id,nullzero" json:"onboarded_by_id,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Host        *User `bun:"rel:belongs-to,join:host_id=id" json:"-"`
	OnboardedBy *User `bun:"rel:belongs-to,join:onboarded_by_id=id" json:"-"`
}
