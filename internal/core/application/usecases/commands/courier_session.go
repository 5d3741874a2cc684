// Package commands contains courier actions that modify orders.
// Every handler checks the action against the courier's current view with
// services.TransitionEngine and hands the resulting patch to the session,
// which shows it immediately and writes it to the store in the background.
package commands

import (
	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// CourierSession is the open session a command runs in.
type CourierSession interface {
	Courier() *courier.Courier
	// Order returns errs.ObjectNotFoundError for orders the courier cannot see.
	Order(orderID kernel.ID) (*order.Order, error)
	Mutate(orderID kernel.ID, patch order.Patch) (*reconciler.Ack, error)
}
