// Package customers keeps the customer book of a tenant.
package customers

import "time"

// Customer is a buyer record. Invoices snapshot the fields they need, so edits never rewrite history.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	GSTNumber string    `json:"gst_number"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
