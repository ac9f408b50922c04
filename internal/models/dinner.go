package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Dinner struct {
	bun.BaseModel `bun:"table:dinners"`

	ID           string    `bun:"id,pk" json:"id"`
	HostID       string    `bun:"host_id,notnull" json:"host_id"`
	Title        string    `bun:"title,notnull" json:"title"`
	PricePerSeat float64   `bun:"price_per_seat,notnull" json:"price_per_seat"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Host *User `bun:"rel:belongs-to,join:host_id=id" json:"-"`
}
