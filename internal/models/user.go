package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Roles mirror the marketplace account model.
const (
	RoleUser      = "USER"
	RoleHost      = "HOST"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	Role         string    `bun:"role,notnull" json:"role"`
	ReferralCode string    `bun:"referral_code,unique,nullzero" json:"referral_code,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// IsModerator reports whether the account may own a referral code.
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator
}
