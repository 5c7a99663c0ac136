package models

import "time"

// Teacher represents a member of the teaching staff.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
