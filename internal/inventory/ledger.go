package inventory

import (
	"time"

	"clinic/m/domain"
)

type ExpiryStatus string

const (
	ExpiryExpired  ExpiryStatus = "Expired"
	ExpiryCritical ExpiryStatus = "Critical"
	ExpiryWarning  ExpiryStatus = "Warning"
	ExpiryGood     ExpiryStatus = "Good"
)

const (
	CriticalWindowDays = 30
	WarningWindowDays  = 90
)

// IsLowStock reports whether the drug sits at or below its reorder threshold.
func IsLowStock(d domain.Drug) bool {
	return d.Stock <= d.MinStock
}

// DaysUntilExpiry counts whole calendar days (UTC) from now to the expiry
// date. ok is false when the drug has no expiry date.
func DaysUntilExpiry(d domain.Drug, now time.Time) (days int, ok bool) {
	if d.ExpiryDate == nil {
		return 0, false
	}
	return daysBetween(now, *d.ExpiryDate), true
}

func IsExpired(d domain.Drug, now time.Time) bool {
	days, ok := DaysUntilExpiry(d, now)
	return ok && days < 0
}

// ExpiryStatusOf buckets a drug by days to expiry; each band's upper bound
// is inclusive. Drugs without an expiry date are Good.
func ExpiryStatusOf(d domain.Drug, now time.Time) ExpiryStatus {
	days, ok := DaysUntilExpiry(d, now)
	if !ok {
		return ExpiryGood
	}
	return statusForDays(days)
}

func statusForDays(days int) ExpiryStatus {
	switch {
	case days < 0:
		return ExpiryExpired
	case days <= CriticalWindowDays:
		return ExpiryCritical
	case days <= WarningWindowDays:
		return ExpiryWarning
	default:
		return ExpiryGood
	}
}

func daysBetween(from, to time.Time) int {
	return int(dateOf(to).Sub(dateOf(from)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
