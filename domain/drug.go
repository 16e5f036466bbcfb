package domain

import "time"

// Drug is a purchasable and sellable medication line. Prices are not stored:
// they are always derived from PurchasePrice, UnitsPerPurchase and the markups.
type Drug struct {
	ID                 int64      `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	Category           string     `db:"category" json:"category"`
	Strength           string     `db:"strength" json:"strength"`
	Unit               string     `db:"unit" json:"unit"`
	PurchaseForm       string     `db:"purchase_form" json:"purchase_form"`
	PurchasePrice      float64    `db:"purchase_price" json:"purchase_price"`
	UnitsPerPurchase   int64      `db:"units_per_purchase" json:"units_per_purchase"`
	SaleForm           string     `db:"sale_form" json:"sale_form"`
	PosMarkup          float64    `db:"pos_markup" json:"pos_markup"`
	PrescriptionMarkup float64    `db:"prescription_markup" json:"prescription_markup"`
	Stock              int64      `db:"stock" json:"stock"`
	MinStock           int64      `db:"min_stock" json:"min_stock"`
	ExpiryDate         *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Active             bool       `db:"active" json:"active"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// SaleUnits converts a quantity of purchase units into sale units.
func (d Drug) SaleUnits(purchaseQuantity int64) int64 {
	return purchaseQuantity * d.UnitsPerPurchase
}

// Category and Form are lookup rows constraining drug selections.
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Form struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
