package commands

import (
	"context"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"
)

// AcceptOrderCommandHandler claims offers.
type AcceptOrderCommandHandler struct {
	engine services.TransitionEngine
}

func NewAcceptOrderCommandHandler(engine services.TransitionEngine) AcceptOrderCommandHandler {
	return AcceptOrderCommandHandler{engine: engine}
}

// Handle fails with order.NotAvailableError when the offer is already taken
// in the courier's view. A claim lost in the store is reported by the Ack.
func (h *AcceptOrderCommandHandler) Handle(
	ctx context.Context,
	s CourierSession,
	cmd AcceptOrderCommand,
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

	patch, err := h.engine.AcceptOrder(o, s.Courier())
	if err != nil {
		return nil, err
	}

	return s.Mutate(cmd.OrderID(), patch)
}
