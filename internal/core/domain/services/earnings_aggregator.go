package services

import (
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// EarningsWindow is the courier's income from delivery fees. It is derived
// from the current order set and never stored.
type EarningsWindow struct {
	Daily           kernel.Money
	Weekly          kernel.Money
	Monthly         kernel.Money
	DailyOrderCount int
}

// EarningsAggregator buckets delivered orders by calendar day, ISO-8601 week
// and calendar month relative to a reference time.
//
// The effective timestamp of an order is deliveredAt, or createdAt for
// records delivered before the stamp existed. Timestamps are read in the
// location of now. Buckets are independent: one order may count in all of
// them, some or none.
type EarningsAggregator struct{}

func NewEarningsAggregator() EarningsAggregator {
	return EarningsAggregator{}
}

// Aggregate recomputes the window from scratch. The result does not depend
// on the order of the input.
func (a EarningsAggregator) Aggregate(orders []*order.Order, now time.Time) EarningsWindow {
	window := EarningsWindow{
		Daily:   kernel.ZeroMoney(),
		Weekly:  kernel.ZeroMoney(),
		Monthly: kernel.ZeroMoney(),
	}

	year, month, day := now.Date()
	isoYear, isoWeek := now.ISOWeek()

	for _, o := range orders {
		if o == nil || o.Status() != order.Delivered {
			continue
		}

		at := time.UnixMilli(o.EffectiveTimestamp()).In(now.Location())
		fee := o.DeliveryFee()

		y, m, d := at.Date()
		if y == year && m == month && d == day {
			window.Daily = window.Daily.Add(fee)
			window.DailyOrderCount++
		}
		if wy, w := at.ISOWeek(); wy == isoYear && w == isoWeek {
			window.Weekly = window.Weekly.Add(fee)
		}
		if y == year && m == month {
			window.Monthly = window.Monthly.Add(fee)
		}
	}

	return window
}
