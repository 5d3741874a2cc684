package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var (
	ErrConfirmDeliveryCommandIsNotConstructed = errors.New(
		"ConfirmDeliveryCommand must be created via NewConfirmDeliveryCommand constructor",
	)
	ErrCodeIsRequired = errs.NewValueIsRequiredError("confirmation code")
)

// ConfirmDeliveryCommand completes a delivery with the code the customer
// gave the courier. The code is compared as entered.
type ConfirmDeliveryCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.ID
	code    string

	guard guard.ConstructorGuard
}

func NewConfirmDeliveryCommand(orderID kernel.ID, code string) (ConfirmDeliveryCommand, error) {
	cmd := ConfirmDeliveryCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setCode(code),
	); err != nil {
		return ConfirmDeliveryCommand{}, err
	}

	return cmd, nil
}

func (c ConfirmDeliveryCommand) Validate() error {
	return c.guard.Validate(ErrConfirmDeliveryCommandIsNotConstructed)
}

func (c ConfirmDeliveryCommand) OrderID() kernel.ID {
	return c.orderID
}

func (c ConfirmDeliveryCommand) Code() string {
	return c.code
}

func (c *ConfirmDeliveryCommand) setOrderID(orderID kernel.ID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}

	c.orderID = orderID
	return nil
}

func (c *ConfirmDeliveryCommand) setCode(code string) error {
	if code == "" {
		return ErrCodeIsRequired
	}

	c.code = code
	return nil
}
