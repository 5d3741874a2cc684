// Package queries contains read-only operations served straight from the
// database, bypassing the live order feed.
package queries

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrGetCourierHistoryQueryIsNotConstructed = errors.New(
	"GetCourierHistoryQuery must be created via NewGetCourierHistoryQuery constructor",
)

// GetCourierHistoryQuery lists the orders a courier delivered since a point
// in time, newest first. A zero limit returns every match.
//
// Example:
//
//	query, err := NewGetCourierHistoryQuery(courierID, time.Now().AddDate(0, 0, -7), 50)
//	if err != nil {
//	    return err
//	}
//	history, err := handler.Handle(ctx, query)
type GetCourierHistoryQuery struct {
	courierID kernel.ID
	since     time.Time
	limit     uint64

	guard guard.ConstructorGuard
}

func NewGetCourierHistoryQuery(courierID kernel.ID, since time.Time, limit uint64) (GetCourierHistoryQuery, error) {
	if err := courierID.Validate(); err != nil {
		return GetCourierHistoryQuery{}, err
	}

	return GetCourierHistoryQuery{
		courierID: courierID,
		since:     since,
		limit:     limit,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

func (q GetCourierHistoryQuery) Validate() error {
	return q.guard.Validate(ErrGetCourierHistoryQueryIsNotConstructed)
}

func (q GetCourierHistoryQuery) CourierID() kernel.ID {
	return q.courierID
}

func (q GetCourierHistoryQuery) Since() time.Time {
	return q.since
}

func (q GetCourierHistoryQuery) Limit() uint64 {
	return q.limit
}

// GetCourierHistoryQueryResponse is one delivered order.
type GetCourierHistoryQueryResponse struct {
	ID             kernel.ID
	DisplayID      string
	RestaurantName string
	DeliveryFee    kernel.Money
	CreatedAt      int64
	DeliveredAt    *int64
}
