package services

import (
	"time"

	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/order"
)

// TransitionEngine turns courier actions into order patches.
//
// It checks the action against the order as the courier currently sees it.
// The returned patch carries a precondition, so the store repeats the check
// atomically at write time and a stale local view cannot win a race.
type TransitionEngine struct {
	now func() time.Time
}

// NewTransitionEngine creates an engine stamping deliveries with now. A nil
// clock falls back to time.Now.
func NewTransitionEngine(now func() time.Time) TransitionEngine {
	if now == nil {
		now = time.Now
	}
	return TransitionEngine{now: now}
}

// AcceptOrder claims an open manual offer for c. It fails with
// order.NotAvailableError when the order already has an assignee or is no
// longer an offer.
func (e TransitionEngine) AcceptOrder(o *order.Order, c *courier.Courier) (order.Patch, error) {
	if err := o.Validate(); err != nil {
		return order.Patch{}, err
	}
	if err := c.Validate(); err != nil {
		return order.Patch{}, err
	}

	if !o.IsOpenOffer() {
		return order.Patch{}, order.NewNotAvailableError(o.ID().String(), o.Status())
	}
	if _, err := o.Status().Accept(); err != nil {
		return order.Patch{}, order.NewNotAvailableError(o.ID().String(), o.Status())
	}

	id, name := c.Assignee()
	return order.NewAcceptPatch(order.Assignee{ID: id, Name: name}), nil
}

// Advance moves o from expected to next. next must be the successor of
// expected and o must still be in expected, otherwise
// order.IllegalTransitionError is returned. Entering Delivered stamps
// deliveredAt in the same patch, never earlier than createdAt.
func (e TransitionEngine) Advance(o *order.Order, expected, next order.Status) (order.Patch, error) {
	if err := o.Validate(); err != nil {
		return order.Patch{}, err
	}

	if o.Status() != expected {
		return order.Patch{}, order.NewIllegalTransitionError(o.ID().String(), o.Status(), next)
	}
	if _, err := expected.Advance(next); err != nil {
		return order.Patch{}, order.NewIllegalTransitionError(o.ID().String(), expected, next)
	}

	var deliveredAt *int64
	if next == order.Delivered {
		ts := max(e.now().UnixMilli(), o.CreatedAt())
		deliveredAt = &ts
	}

	return order.NewAdvancePatch(expected, next, deliveredAt), nil
}

// ConfirmDelivery gates the final step behind the customer's code. The code
// is compared exactly; a mismatch returns order.CodeMismatchError and
// produces no patch. Retries are unlimited.
func (e TransitionEngine) ConfirmDelivery(o *order.Order, enteredCode string) (order.Patch, error) {
	if err := o.Validate(); err != nil {
		return order.Patch{}, err
	}

	if !o.MatchesCode(enteredCode) {
		return order.Patch{}, order.NewCodeMismatchError(o.ID().String())
	}

	return e.Advance(o, order.OnTheWayToCustomer, order.Delivered)
}
