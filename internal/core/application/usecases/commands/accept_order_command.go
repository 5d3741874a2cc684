package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrAcceptOrderCommandIsNotConstructed = errors.New(
	"AcceptOrderCommand must be created via NewAcceptOrderCommand constructor",
)

// AcceptOrderCommand claims an open manual offer for the session's courier.
//
// Example:
//
//	cmd, err := NewAcceptOrderCommand(orderID)
//	if err != nil {
//	    return err
//	}
//	ack, err := handler.Handle(ctx, session, cmd)
//	if err != nil {
//	    return err // already claimed in the courier's view
//	}
//	if err := ack.Wait(ctx); errors.Is(err, order.ErrNotAvailable) {
//	    // another courier won the race
//	}
type AcceptOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.ID

	guard guard.ConstructorGuard
}

func NewAcceptOrderCommand(orderID kernel.ID) (AcceptOrderCommand, error) {
	cmd := AcceptOrderCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := cmd.setOrderID(orderID); err != nil {
		return AcceptOrderCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c AcceptOrderCommand) Validate() error {
	return c.guard.Validate(ErrAcceptOrderCommandIsNotConstructed)
}

func (c AcceptOrderCommand) OrderID() kernel.ID {
	return c.orderID
}

func (c *AcceptOrderCommand) setOrderID(orderID kernel.ID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}

	c.orderID = orderID
	return nil
}
