package queries

import (
	"context"

	"dispatch/internal/core/domain/services"
)

// GetEarningsQueryHandler aggregates the persisted delivery history, so the
// totals include orders no longer in the live feed.
type GetEarningsQueryHandler struct {
	history    GetCourierHistoryQueryHandler
	aggregator services.EarningsAggregator
}

func NewGetEarningsQueryHandler(history GetCourierHistoryQueryHandler) GetEarningsQueryHandler {
	return GetEarningsQueryHandler{
		history:    history,
		aggregator: services.NewEarningsAggregator(),
	}
}

func (h GetEarningsQueryHandler) Handle(ctx context.Context, query GetEarningsQuery) (services.EarningsWindow, error) {
	if err := query.Validate(); err != nil {
		return services.EarningsWindow{}, err
	}

	historyQuery, err := NewGetCourierHistoryQuery(query.CourierID(), query.WindowStart(), 0)
	if err != nil {
		return services.EarningsWindow{}, err
	}

	orders, err := h.history.load(ctx, historyQuery)
	if err != nil {
		return services.EarningsWindow{}, err
	}

	return h.aggregator.Aggregate(orders, query.Now()), nil
}
