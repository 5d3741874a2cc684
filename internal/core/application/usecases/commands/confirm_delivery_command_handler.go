package commands

import (
	"context"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"
)

// ConfirmDeliveryCommandHandler checks the confirmation code and marks the
// order delivered.
type ConfirmDeliveryCommandHandler struct {
	engine services.TransitionEngine
}

func NewConfirmDeliveryCommandHandler(engine services.TransitionEngine) ConfirmDeliveryCommandHandler {
	return ConfirmDeliveryCommandHandler{engine: engine}
}

// Handle returns order.CodeMismatchError without touching the order when the
// code is wrong. Retries are unlimited.
func (h *ConfirmDeliveryCommandHandler) Handle(
	ctx context.Context,
	s CourierSession,
	cmd ConfirmDeliveryCommand,
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

	o, err := s.Order(cmd.OrderID())
	if err != nil {
		return nil, err
	}

	patch, err := h.engine.ConfirmDelivery(o, cmd.Code())
	if err != nil {
		return nil, err
	}

	return s.Mutate(cmd.OrderID(), patch)
}
