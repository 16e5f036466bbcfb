package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
)

const tolerance = 1e-9

func TestCompute_BoxOfHundred(t *testing.T) {
	q := Compute(Input{PurchasePrice: 100, UnitsPerPurchase: 100, PosMarkup: 0.20, PrescriptionMarkup: 0.10})

	assert.InDelta(t, 1.00, q.UnitCost, tolerance)
	assert.InDelta(t, 1.20, q.PosPrice, tolerance)
	assert.InDelta(t, 1.10, q.PrescriptionPrice, tolerance)

	d := q.Display()
	assert.Equal(t, Display{UnitCost: "1.00", PosPrice: "1.20", PrescriptionPrice: "1.10"}, d)
}

func TestCompute_Relations(t *testing.T) {
	cases := []Input{
		{PurchasePrice: 0, UnitsPerPurchase: 1},
		{PurchasePrice: 12.5, UnitsPerPurchase: 3, PosMarkup: 0.35, PrescriptionMarkup: 0.15},
		{PurchasePrice: 999.99, UnitsPerPurchase: 7, PosMarkup: 1.5},
		{PurchasePrice: 0.01, UnitsPerPurchase: 1000, PrescriptionMarkup: 0.05},
	}
	for _, in := range cases {
		q := Compute(in)
		unit := in.PurchasePrice / float64(in.UnitsPerPurchase)
		assert.InDelta(t, unit, q.UnitCost, tolerance)
		assert.InDelta(t, unit*(1+in.PosMarkup), q.PosPrice, tolerance)
		assert.InDelta(t, unit*(1+in.PrescriptionMarkup), q.PrescriptionPrice, tolerance)
		assert.Equal(t, q, Compute(in), "same inputs must give identical results")
	}
}

func TestCompute_ZeroDivisor(t *testing.T) {
	for _, units := range []int64{0, -4} {
		q := Compute(Input{PurchasePrice: 50, UnitsPerPurchase: units, PosMarkup: 0.2})
		assert.Zero(t, q.UnitCost)
		assert.Zero(t, q.PosPrice)
		assert.Zero(t, q.PrescriptionPrice)
	}
}

func TestFromDrug(t *testing.T) {
	d := domain.Drug{PurchasePrice: 40, UnitsPerPurchase: 20, PosMarkup: 0.5, PrescriptionMarkup: 0.25, Stock: 3}
	assert.Equal(t, Input{PurchasePrice: 40, UnitsPerPurchase: 20, PosMarkup: 0.5, PrescriptionMarkup: 0.25}, FromDrug(d))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, "0.00", Round2(0))
	assert.Equal(t, "1.13", Round2(1.125))
	assert.Equal(t, "3.33", Round2(10.0/3))
	assert.Equal(t, "-1.13", Round2(-1.125))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Input{PurchasePrice: 0, UnitsPerPurchase: 1}))

	err := Validate(Input{PurchasePrice: -1, UnitsPerPurchase: 0, PosMarkup: -0.1, PrescriptionMarkup: math.NaN()})
	v, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Len(t, v.Fields, 4)
	assert.Contains(t, v.Fields, "units_per_purchase")
}

func TestPrescriptionQuantity(t *testing.T) {
	n, err := PrescriptionQuantity(1, 3, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 21, n)

	n, err = PrescriptionQuantity(0.5, 3, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	_, err = PrescriptionQuantity(0, 0, 0)
	v, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Len(t, v.Fields, 3)
}
