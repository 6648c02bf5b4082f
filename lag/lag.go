// Package lag derives the calendar date of a lagged snapshot. A month is a flat
// thirty days, not a calendar month.
package lag

import (
	"time"

	"github.com/pkg/errors"
)

const (
	DaysPerMonth  = 30
	DefaultMonths = 2
	DateLayout    = "2006-01-02"
)

var ErrNegativeLag = errors.New("months back must be zero or greater")

// Date returns reference minus monthsBack*30 days as YYYY-MM-DD, evaluated in
// reference's location.
func Date(monthsBack int, reference time.Time) (string, error) {
	if monthsBack < 0 {
		return "", ErrNegativeLag
	}
	return reference.AddDate(0, 0, -monthsBack*DaysPerMonth).Format(DateLayout), nil
}
