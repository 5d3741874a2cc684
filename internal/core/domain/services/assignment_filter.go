package services

import (
	"slices"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// AssignmentFilter selects the orders visible to one courier.
//
// An order is visible when it is assigned to the courier, or when it is an
// open manual offer that nobody has claimed yet. Delivered orders are only
// kept when they belong to the courier, so couriers see their own history but
// not the completed work of others.
//
// Example:
//
//	filter := services.NewAssignmentFilter()
//	visible := filter.VisibleOrders(snapshot.Orders, courierID)
type AssignmentFilter struct{}

func NewAssignmentFilter() AssignmentFilter {
	return AssignmentFilter{}
}

// VisibleOrders returns the visible subset of all, newest first. Orders
// created at the same millisecond are ordered by id. The input slice is not
// modified.
func (f AssignmentFilter) VisibleOrders(all []*order.Order, courierID kernel.ID) []*order.Order {
	visible := make([]*order.Order, 0, len(all))
	for _, o := range all {
		if o == nil || !f.IsVisible(o, courierID) {
			continue
		}
		visible = append(visible, o)
	}

	slices.SortFunc(visible, compareNewestFirst)
	return visible
}

// IsVisible applies the visibility rule to a single order.
func (f AssignmentFilter) IsVisible(o *order.Order, courierID kernel.ID) bool {
	if o.Status() == order.Delivered {
		return o.IsAssignedTo(courierID)
	}
	return o.IsAssignedTo(courierID) || o.IsOpenOffer()
}

func compareNewestFirst(a, b *order.Order) int {
	switch {
	case a.CreatedAt() > b.CreatedAt():
		return -1
	case a.CreatedAt() < b.CreatedAt():
		return 1
	case a.ID().Less(b.ID()):
		return -1
	case b.ID().Less(a.ID()):
		return 1
	default:
		return 0
	}
}
