package queries

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrGetEarningsQueryIsNotConstructed = errors.New(
	"GetEarningsQuery must be created via NewGetEarningsQuery constructor",
)

// GetEarningsQuery sums a courier's persisted deliveries into daily, weekly
// and monthly windows around now, in now's location.
type GetEarningsQuery struct {
	courierID kernel.ID
	now       time.Time

	guard guard.ConstructorGuard
}

func NewGetEarningsQuery(courierID kernel.ID, now time.Time) (GetEarningsQuery, error) {
	if err := courierID.Validate(); err != nil {
		return GetEarningsQuery{}, err
	}
	if now.IsZero() {
		now = time.Now()
	}

	return GetEarningsQuery{
		courierID: courierID,
		now:       now,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

func (q GetEarningsQuery) Validate() error {
	return q.guard.Validate(ErrGetEarningsQueryIsNotConstructed)
}

func (q GetEarningsQuery) CourierID() kernel.ID {
	return q.courierID
}

func (q GetEarningsQuery) Now() time.Time {
	return q.now
}

// WindowStart is the earliest instant any window of the query covers: the
// start of the ISO week or of the month, whichever comes first.
func (q GetEarningsQuery) WindowStart() time.Time {
	now := q.now
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := day.AddDate(0, 0, 1-weekday)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	if weekStart.Before(monthStart) {
		return weekStart
	}
	return monthStart
}
