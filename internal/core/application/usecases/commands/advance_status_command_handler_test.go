package commands_test

import (
	"context"
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAdvanceStatusCommandHandler_Handle(t *testing.T) {
	handler := commands.NewAdvanceStatusCommandHandler(services.NewTransitionEngine(fixedClock))

	t.Run("should mutate with the successor guarded by the expected status", func(t *testing.T) {
		cmd, err := commands.NewAdvanceStatusCommand(orderID, order.ArrivedAtStore, order.PickingUpOrder)
		require.NoError(t, err)
		s := new(MockCourierSession)
		s.On("Order", orderID).Return(newOrder(t, order.ArrivedAtStore, courierID), nil).Once()
		s.On("Mutate", orderID, mock.MatchedBy(func(p order.Patch) bool {
			return p.Status == order.PickingUpOrder &&
				p.Precondition.Status == order.ArrivedAtStore &&
				p.DeliveredAt == nil
		})).Return(nil, nil).Once()

		_, err = handler.Handle(t.Context(), s, cmd)

		require.NoError(t, err)
		s.AssertExpectations(t)
	})

	t.Run("should refuse skipping a step", func(t *testing.T) {
		cmd, err := commands.NewAdvanceStatusCommand(orderID, order.Accepted, order.ArrivedAtStore)
		require.NoError(t, err)
		s := new(MockCourierSession)
		s.On("Order", orderID).Return(newOrder(t, order.Accepted, courierID), nil).Once()

		_, err = handler.Handle(t.Context(), s, cmd)

		var illegal *order.IllegalTransitionError
		require.ErrorAs(t, err, &illegal)
		assert.Equal(t, order.Accepted, illegal.From)
		assert.Equal(t, order.ArrivedAtStore, illegal.To)
		s.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything)
	})

	t.Run("should refuse delivering without the confirmation code", func(t *testing.T) {
		cmd, err := commands.NewAdvanceStatusCommand(orderID, order.OnTheWayToCustomer, order.Delivered)
		require.NoError(t, err)
		s := new(MockCourierSession)
		s.On("Order", orderID).Return(newOrder(t, order.OnTheWayToCustomer, courierID), nil).Maybe()

		_, err = handler.Handle(t.Context(), s, cmd)

		var illegal *order.IllegalTransitionError
		require.ErrorAs(t, err, &illegal)
		assert.Equal(t, order.OnTheWayToCustomer, illegal.From)
		assert.Equal(t, order.Delivered, illegal.To)
		s.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything)
	})

	t.Run("should refuse a stale expected status", func(t *testing.T) {
		cmd, err := commands.NewAdvanceStatusCommand(orderID, order.Accepted, order.OnTheWayToStore)
		require.NoError(t, err)
		s := new(MockCourierSession)
		s.On("Order", orderID).Return(newOrder(t, order.OnTheWayToStore, courierID), nil).Once()

		_, err = handler.Handle(t.Context(), s, cmd)

		require.ErrorIs(t, err, order.ErrIllegalTransition)
	})

	t.Run("should stop on a cancelled context", func(t *testing.T) {
		cmd, err := commands.NewAdvanceStatusCommand(orderID, order.Accepted, order.OnTheWayToStore)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err = handler.Handle(ctx, new(MockCourierSession), cmd)

		require.ErrorIs(t, err, context.Canceled)
	})
}
