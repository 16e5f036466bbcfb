package domain

import "time"

const (
	NotifyRestockPending  = "restock_pending"
	NotifyRestockApproved = "restock_approved"
	NotifyRestockRejected = "restock_rejected"
	NotifyLowStock        = "low_stock"
)

type Notification struct {
	ID            string    `db:"id" json:"id"`
	Type          string    `db:"type" json:"type"`
	Message       string    `db:"message" json:"message"`
	DrugID        *int64    `db:"drug_id" json:"drug_id,omitempty"`
	RestockID     *string   `db:"restock_id" json:"restock_id,omitempty"`
	RecipientRole *string   `db:"recipient_role" json:"recipient_role,omitempty"`
	RecipientID   *int64    `db:"recipient_id" json:"recipient_id,omitempty"`
	Read          bool      `db:"is_read" json:"read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
