package inventory

import (
	"strings"
	"time"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
	"clinic/m/internal/pricing"
)

var validUnits = map[string]bool{
	"": true, "mg": true, "mcg": true, "g": true, "ml": true, "iu": true,
}

// DrugBasics is the first step of drug creation.
type DrugBasics struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Strength string `json:"strength"`
	Unit     string `json:"unit"`
}

func (b DrugBasics) normalized() DrugBasics {
	b.Name = strings.TrimSpace(b.Name)
	b.Category = strings.TrimSpace(b.Category)
	b.Strength = strings.TrimSpace(b.Strength)
	b.Unit = strings.ToLower(strings.TrimSpace(b.Unit))
	return b
}

func (b DrugBasics) Validate() error {
	b = b.normalized()
	v := &apperr.ValidationError{}
	if b.Name == "" {
		v.Add("name", "is required")
	}
	if b.Category == "" {
		v.Add("category", "is required")
	}
	if !validUnits[b.Unit] {
		v.Add("unit", "must be one of mg, mcg, g, ml, iu")
	}
	return v.OrNil()
}

// DrugPricing is the second step of drug creation: the unit model, the
// purchase price and both markups.
type DrugPricing struct {
	PurchaseForm       string  `json:"purchase_form"`
	PurchasePrice      float64 `json:"purchase_price"`
	UnitsPerPurchase   int64   `json:"units_per_purchase"`
	SaleForm           string  `json:"sale_form"`
	PosMarkup          float64 `json:"pos_markup"`
	PrescriptionMarkup float64 `json:"prescription_markup"`
	MinStock           int64   `json:"min_stock"`
	ExpiryDate         string  `json:"expiry_date,omitempty"`
}

func (p DrugPricing) Input() pricing.Input {
	return pricing.Input{
		PurchasePrice:      p.PurchasePrice,
		UnitsPerPurchase:   p.UnitsPerPurchase,
		PosMarkup:          p.PosMarkup,
		PrescriptionMarkup: p.PrescriptionMarkup,
	}
}

func (p DrugPricing) Validate() error {
	v := &apperr.ValidationError{}
	if err := pricing.Validate(p.Input()); err != nil {
		pv, _ := apperr.AsValidation(err)
		v.Merge("", pv)
	}
	if strings.TrimSpace(p.PurchaseForm) == "" {
		v.Add("purchase_form", "is required")
	}
	if strings.TrimSpace(p.SaleForm) == "" {
		v.Add("sale_form", "is required")
	}
	if p.MinStock < 0 {
		v.Add("min_stock", "must not be negative")
	}
	if strings.TrimSpace(p.ExpiryDate) != "" {
		if _, err := ParseDate(p.ExpiryDate); err != nil {
			v.Add("expiry_date", "must be a date (YYYY-MM-DD)")
		}
	}
	return v.OrNil()
}

// CreateDrugCommand is a validated drug ready to insert. Only DrugBuilder
// produces one.
type CreateDrugCommand struct {
	drug domain.Drug
}

// Drug returns the drug the command will create, without ID or timestamps.
func (c CreateDrugCommand) Drug() domain.Drug {
	return c.drug
}

func (c CreateDrugCommand) valid() bool {
	return c.drug.Name != ""
}

// DrugBuilder collects the two creation steps, validates each on its own and
// combines them.
type DrugBuilder struct {
	basics  *DrugBasics
	pricing *DrugPricing
}

func NewDrugBuilder() *DrugBuilder {
	return &DrugBuilder{}
}

func (b *DrugBuilder) WithBasics(basics DrugBasics) *DrugBuilder {
	b.basics = &basics
	return b
}

func (b *DrugBuilder) WithPricing(p DrugPricing) *DrugBuilder {
	b.pricing = &p
	return b
}

func (b *DrugBuilder) Build() (CreateDrugCommand, error) {
	v := &apperr.ValidationError{}
	if b.basics == nil {
		v.Add("basic", "is required")
	} else if err := b.basics.Validate(); err != nil {
		bv, _ := apperr.AsValidation(err)
		v.Merge("basic.", bv)
	}
	if b.pricing == nil {
		v.Add("pricing", "is required")
	} else if err := b.pricing.Validate(); err != nil {
		pv, _ := apperr.AsValidation(err)
		v.Merge("pricing.", pv)
	}
	if err := v.OrNil(); err != nil {
		return CreateDrugCommand{}, err
	}

	basics := b.basics.normalized()
	p := *b.pricing
	d := domain.Drug{
		Name:               basics.Name,
		Category:           basics.Category,
		Strength:           basics.Strength,
		Unit:               basics.Unit,
		PurchaseForm:       strings.TrimSpace(p.PurchaseForm),
		PurchasePrice:      p.PurchasePrice,
		UnitsPerPurchase:   p.UnitsPerPurchase,
		SaleForm:           strings.TrimSpace(p.SaleForm),
		PosMarkup:          p.PosMarkup,
		PrescriptionMarkup: p.PrescriptionMarkup,
		MinStock:           p.MinStock,
		Active:             true,
	}
	if strings.TrimSpace(p.ExpiryDate) != "" {
		exp, _ := ParseDate(p.ExpiryDate)
		d.ExpiryDate = &exp
	}
	return CreateDrugCommand{drug: d}, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns the UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return dateOf(t), nil
}
