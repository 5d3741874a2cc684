package commands_test

import (
	"testing"
	"time"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	orderID   = kernel.MustIDFromString("o-1")
	courierID = kernel.MustIDFromString("rider-1")
	now       = time.Date(2026, time.March, 11, 15, 0, 0, 0, time.UTC)
)

type MockCourierSession struct{ mock.Mock }

func (m *MockCourierSession) Courier() *courier.Courier {
	args := m.Called()
	return args.Get(0).(*courier.Courier)
}

func (m *MockCourierSession) Order(id kernel.ID) (*order.Order, error) {
	args := m.Called(id)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockCourierSession) Mutate(id kernel.ID, patch order.Patch) (*reconciler.Ack, error) {
	args := m.Called(id, patch)
	ack, _ := args.Get(0).(*reconciler.Ack)
	return ack, args.Error(1)
}

func approvedCourier(t *testing.T) *courier.Courier {
	t.Helper()
	c, err := courier.RestoreCourier(courierID, "Ana", true, courier.Presence{})
	require.NoError(t, err)
	return c
}

func newOrder(t *testing.T, status order.Status, assignee kernel.ID) *order.Order {
	t.Helper()
	o, err := order.RestoreOrder(order.Params{
		ID:                  orderID,
		DeliveryFee:         kernel.MustMoney("5.00"),
		ConfirmationCode:    "0420",
		Status:              status,
		AssignedCourierID:   assignee,
		AssignedCourierName: assignee.String(),
		CreatedAt:           now.Add(-time.Hour).UnixMilli(),
	})
	require.NoError(t, err)
	return o
}

func fixedClock() time.Time {
	return now
}
