// Package pricing derives sale-unit cost and sale prices from purchase-side
// inputs. Compute is pure and never fails; range checks live in Validate.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
)

// Input is everything the price of one sale unit depends on. Markups are
// fractional: 0.20 means 20%.
type Input struct {
	PurchasePrice      float64 `json:"purchase_price"`
	UnitsPerPurchase   int64   `json:"units_per_purchase"`
	PosMarkup          float64 `json:"pos_markup"`
	PrescriptionMarkup float64 `json:"prescription_markup"`
}

// Quote holds full-precision prices. Round only for presentation.
type Quote struct {
	UnitCost          float64 `json:"unit_cost"`
	PosPrice          float64 `json:"pos_price"`
	PrescriptionPrice float64 `json:"prescription_price"`
}

// Display is a Quote rounded to two places.
type Display struct {
	UnitCost          string `json:"unit_cost"`
	PosPrice          string `json:"pos_price"`
	PrescriptionPrice string `json:"prescription_price"`
}

// FromDrug reads the pricing inputs of d.
func FromDrug(d domain.Drug) Input {
	return Input{
		PurchasePrice:      d.PurchasePrice,
		UnitsPerPurchase:   d.UnitsPerPurchase,
		PosMarkup:          d.PosMarkup,
		PrescriptionMarkup: d.PrescriptionMarkup,
	}
}

// Compute derives the quote. A zero or negative divisor yields a zero unit cost.
func Compute(in Input) Quote {
	var unitCost float64
	if in.UnitsPerPurchase > 0 {
		unitCost = in.PurchasePrice / float64(in.UnitsPerPurchase)
	}
	return Quote{
		UnitCost:          unitCost,
		PosPrice:          unitCost * (1 + in.PosMarkup),
		PrescriptionPrice: unitCost * (1 + in.PrescriptionMarkup),
	}
}

func (q Quote) Display() Display {
	return Display{
		UnitCost:          Round2(q.UnitCost),
		PosPrice:          Round2(q.PosPrice),
		PrescriptionPrice: Round2(q.PrescriptionPrice),
	}
}

// Round2 formats v with two decimals, rounding half away from zero.
func Round2(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// Validate rejects inputs the calculator would silently degrade on.
func Validate(in Input) error {
	v := &apperr.ValidationError{}
	if in.PurchasePrice < 0 || math.IsNaN(in.PurchasePrice) || math.IsInf(in.PurchasePrice, 0) {
		v.Add("purchase_price", "must be a non-negative number")
	}
	if in.UnitsPerPurchase < 1 {
		v.Add("units_per_purchase", "must be at least 1")
	}
	if in.PosMarkup < 0 || math.IsNaN(in.PosMarkup) || math.IsInf(in.PosMarkup, 0) {
		v.Add("pos_markup", "must be a non-negative number")
	}
	if in.PrescriptionMarkup < 0 || math.IsNaN(in.PrescriptionMarkup) || math.IsInf(in.PrescriptionMarkup, 0) {
		v.Add("prescription_markup", "must be a non-negative number")
	}
	return v.OrNil()
}

// PrescriptionQuantity is the number of sale units needed to cover a course
// of dosePerIntake taken timesPerDay for days, rounded up to whole units.
func PrescriptionQuantity(dosePerIntake float64, timesPerDay, days int64) (int64, error) {
	v := &apperr.ValidationError{}
	if dosePerIntake <= 0 || math.IsNaN(dosePerIntake) || math.IsInf(dosePerIntake, 0) {
		v.Add("dose", "must be greater than zero")
	}
	if timesPerDay < 1 {
		v.Add("times_per_day", "must be at least 1")
	}
	if days < 1 {
		v.Add("days", "must be at least 1")
	}
	if err := v.OrNil(); err != nil {
		return 0, err
	}
	total := decimal.NewFromFloat(dosePerIntake).
		Mul(decimal.NewFromInt(timesPerDay)).
		Mul(decimal.NewFromInt(days))
	return total.Ceil().IntPart(), nil
}
