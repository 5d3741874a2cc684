package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/guard"
)

var ErrAdvanceStatusCommandIsNotConstructed = errors.New(
	"AdvanceStatusCommand must be created via NewAdvanceStatusCommand constructor",
)

// AdvanceStatusCommand moves an order the courier carries one step forward.
// expected is the status the courier saw when acting.
type AdvanceStatusCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.ID
	expected order.Status
	next     order.Status

	guard guard.ConstructorGuard
}

func NewAdvanceStatusCommand(orderID kernel.ID, expected, next order.Status) (AdvanceStatusCommand, error) {
	cmd := AdvanceStatusCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setStatuses(expected, next),
	); err != nil {
		return AdvanceStatusCommand{}, err
	}

	return cmd, nil
}

func (c AdvanceStatusCommand) Validate() error {
	return c.guard.Validate(ErrAdvanceStatusCommandIsNotConstructed)
}

func (c AdvanceStatusCommand) OrderID() kernel.ID {
	return c.orderID
}

func (c AdvanceStatusCommand) Expected() order.Status {
	return c.expected
}

func (c AdvanceStatusCommand) Next() order.Status {
	return c.next
}

func (c *AdvanceStatusCommand) setOrderID(orderID kernel.ID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}

	c.orderID = orderID
	return nil
}

func (c *AdvanceStatusCommand) setStatuses(expected, next order.Status) error {
	if err := errors.Join(expected.Validate(), next.Validate()); err != nil {
		return err
	}

	c.expected = expected
	c.next = next
	return nil
}
