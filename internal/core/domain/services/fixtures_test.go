package services_test

import (
	"testing"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	id          string
	status      order.Status
	assignee    string
	candidates  []string
	createdAt   int64
	deliveredAt *int64
	fee         string
}

func newOrder(t *testing.T, s orderFixture) *order.Order {
	t.Helper()

	if s.createdAt == 0 {
		s.createdAt = 1_700_000_000_000
	}
	if s.fee == "" {
		s.fee = "5.50"
	}

	p := order.Params{
		ID:                kernel.MustIDFromString(s.id),
		RestaurantName:    "Pizzeria Roma",
		DeliveryFee:       kernel.MustMoney(s.fee),
		ConfirmationCode:  "1234",
		Status:            s.status,
		CreatedAt:         s.createdAt,
		DeliveredAt:       s.deliveredAt,
		AssignedCourierID: kernel.ID{},
	}
	if s.assignee != "" {
		p.AssignedCourierID = kernel.MustIDFromString(s.assignee)
		p.AssignedCourierName = s.assignee
	}
	for _, c := range s.candidates {
		p.CandidateCourierIDs = append(p.CandidateCourierIDs, kernel.MustIDFromString(c))
	}

	o, err := order.RestoreOrder(p)
	require.NoError(t, err)
	return o
}

func ids(orders []*order.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID().String())
	}
	return out
}

func ms(v int64) *int64 {
	return &v
}
