package domain

import "time"

type RestockStatus string

const (
	RestockPending  RestockStatus = "pending"
	RestockApproved RestockStatus = "approved"
	RestockRejected RestockStatus = "rejected"
)

// RestockEvent records one replenishment. UnitsPerPurchase is the drug's
// conversion factor at the moment the stock was (or would be) incremented.
type RestockEvent struct {
	ID               string        `db:"id" json:"id"`
	DrugID           int64         `db:"drug_id" json:"drug_id"`
	PurchaseQuantity int64         `db:"purchase_quantity" json:"purchase_quantity"`
	UnitsPerPurchase int64         `db:"units_per_purchase" json:"units_per_purchase"`
	SaleQuantity     int64         `db:"sale_quantity" json:"sale_quantity"`
	BatchNumber      string        `db:"batch_number" json:"batch_number"`
	ExpiryDate       time.Time     `db:"expiry_date" json:"expiry_date"`
	Notes            *string       `db:"notes" json:"notes,omitempty"`
	Status           RestockStatus `db:"status" json:"status"`
	RequestedBy      int64         `db:"requested_by" json:"requested_by"`
	ReviewedBy       *int64        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewReason     *string       `db:"review_reason" json:"review_reason,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	ReviewedAt       *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
}
