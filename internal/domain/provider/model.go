package provider

import "time"

// Provider is a staff member who can be booked. Inactive providers keep their
// history but drop out of calendar views.
type Provider struct {
	ID         int64     `db:"id" json:"id"`
	BusinessID int64     `db:"business_id" json:"businessId"`
	Name       string    `db:"name" json:"name"`
	IsActive   bool      `db:"is_active" json:"isActive"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type CreateInput struct {
	Name string `json:"name"`
	// SkipDefaultSchedule leaves the new provider without availability.
	SkipDefaultSchedule bool `json:"skipDefaultSchedule,omitempty"`
}
