package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Vehicle is a host's listed car. The booking flow only reads the daily rate
// and existence; listing management is the hosts' side of the marketplace.
type Vehicle struct {
	bun.BaseModel `bun:"table:vehicles"`

	ID        string    `bun:"id,pk" json:"id"`
	HostID    string    `bun:"host_id,notnull" json:"host_id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Make      string    `bun:"make,nullzero" json:"make,omitempty"`
	Model     string    `bun:"model,nullzero" json:"model,omitempty"`
	Year      int       `bun:"year,nullzero" json:"year,omitempty"`
	Location  string    `bun:"location,nullzero" json:"location,omitempty"`
	DailyRate float64   `bun:"daily_rate,notnull" json:"daily_rate"`
	Currency  string    `bun:"currency,notnull,default:'INR'" json:"currency"`
	Active    bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type CreateVehicleRequest struct {
	Title     string  `json:"title"`
	Make      string  `json:"make,omitempty"`
	Model     string  `json:"model,omitempty"`
	Year      int     `json:"year,omitempty"`
	Location  string  `json:"location,omitempty"`
	DailyRate float64 `json:"daily_rate"`
	Currency  string  `json:"currency,omitempty"`
}
