package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clinic/m/domain"
)

var refNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func expiringIn(days int) domain.Drug {
	exp := dateOf(refNow).AddDate(0, 0, days)
	return domain.Drug{ExpiryDate: &exp}
}

func TestIsLowStock(t *testing.T) {
	assert.True(t, IsLowStock(domain.Drug{Stock: 50, MinStock: 50}))
	assert.True(t, IsLowStock(domain.Drug{Stock: 0, MinStock: 10}))
	assert.False(t, IsLowStock(domain.Drug{Stock: 51, MinStock: 50}))
}

func TestExpiryStatusOf_Boundaries(t *testing.T) {
	cases := []struct {
		days int
		want ExpiryStatus
	}{
		{-1, ExpiryExpired},
		{0, ExpiryCritical},
		{30, ExpiryCritical},
		{31, ExpiryWarning},
		{90, ExpiryWarning},
		{91, ExpiryGood},
		{400, ExpiryGood},
	}
	for _, tc := range cases {
		d := expiringIn(tc.days)
		got, ok := DaysUntilExpiry(d, refNow)
		assert.True(t, ok)
		assert.Equal(t, tc.days, got)
		assert.Equal(t, tc.want, ExpiryStatusOf(d, refNow), "days=%d", tc.days)
		assert.Equal(t, ExpiryStatusOf(d, refNow), ExpiryStatusOf(d, refNow))
	}
}

func TestIsExpired(t *testing.T) {
	assert.True(t, IsExpired(expiringIn(-1), refNow))
	assert.False(t, IsExpired(expiringIn(0), refNow))
	assert.False(t, IsExpired(domain.Drug{}, refNow))
	assert.Equal(t, ExpiryGood, ExpiryStatusOf(domain.Drug{}, refNow))
}

func TestDaysUntilExpiry_IgnoresTimeOfDayAndZone(t *testing.T) {
	exp := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	d := domain.Drug{ExpiryDate: &exp}
	late := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	days, _ := DaysUntilExpiry(d, late)
	assert.Equal(t, 1, days)
}
