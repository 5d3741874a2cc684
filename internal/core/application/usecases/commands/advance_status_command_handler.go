package commands

import (
	"context"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"
)

// AdvanceStatusCommandHandler steps an order through the delivery chain.
type AdvanceStatusCommandHandler struct {
	engine services.TransitionEngine
}

func NewAdvanceStatusCommandHandler(engine services.TransitionEngine) AdvanceStatusCommandHandler {
	return AdvanceStatusCommandHandler{engine: engine}
}

// Handle returns order.IllegalTransitionError when next is not the successor
// of expected or the order moved on. DELIVERED is always refused here: it
// requires the confirmation code and goes through
// ConfirmDeliveryCommandHandler.
func (h *AdvanceStatusCommandHandler) Handle(
	ctx context.Context,
	s CourierSession,
	cmd AdvanceStatusCommand,
) (*reconciler.Ack, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errs.NewValueIsRequiredError("session")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cmd.Next() == order.Delivered {
		return nil, order.NewIllegalTransitionError(cmd.OrderID().String(), cmd.Expected(), order.Delivered)
	}

	o, err := s.Order(cmd.OrderID())
	if err != nil {
		return nil, err
	}

	patch, err := h.engine.Advance(o, cmd.Expected(), cmd.Next())
	if err != nil {
		return nil, err
	}

	return s.Mutate(cmd.OrderID(), patch)
}
