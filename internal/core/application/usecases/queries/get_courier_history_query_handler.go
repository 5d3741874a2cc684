package queries

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const effectiveTimestamp = "COALESCE(delivered_at, created_at)"

// GetCourierHistoryQueryHandler reads delivered orders from the orders table.
type GetCourierHistoryQueryHandler struct {
	db *gorm.DB
}

func NewGetCourierHistoryQueryHandler(db *gorm.DB) GetCourierHistoryQueryHandler {
	return GetCourierHistoryQueryHandler{db: db}
}

func (h GetCourierHistoryQueryHandler) Handle(
	ctx context.Context,
	query GetCourierHistoryQuery,
) ([]GetCourierHistoryQueryResponse, error) {
	orders, err := h.load(ctx, query)
	if err != nil {
		return nil, err
	}

	history := make([]GetCourierHistoryQueryResponse, 0, len(orders))
	for _, o := range orders {
		history = append(history, GetCourierHistoryQueryResponse{
			ID:             o.ID(),
			DisplayID:      o.DisplayID(),
			RestaurantName: o.RestaurantName(),
			DeliveryFee:    o.DeliveryFee(),
			CreatedAt:      o.CreatedAt(),
			DeliveredAt:    o.DeliveredAt(),
		})
	}
	return history, nil
}

// load returns the matching rows as orders so they can be aggregated.
func (h GetCourierHistoryQueryHandler) load(ctx context.Context, query GetCourierHistoryQuery) ([]*order.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	builder := sq.Select(
		"id",
		"display_id",
		"restaurant_name",
		"delivery_fee",
		"confirmation_code",
		"assigned_courier_name",
		"created_at",
		"delivered_at",
		"revision",
	).
		From("orders").
		Where(sq.Eq{
			"assigned_courier_id": query.CourierID().String(),
			"status":              order.Delivered.String(),
		}).
		Where(sq.GtOrEq{effectiveTimestamp: query.Since().UnixMilli()}).
		OrderBy(effectiveTimestamp+" DESC", "id")
	if query.Limit() > 0 {
		builder = builder.Limit(query.Limit())
	}

	// gorm rebinds ? placeholders for the dialect.
	statement, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := h.db.WithContext(ctx).Raw(statement, args...).Rows()
	if err != nil {
		return nil, errs.NewStoreUnavailableError("courier history", err)
	}
	defer rows.Close()

	orders := make([]*order.Order, 0)
	for rows.Next() {
		var (
			id, displayID, restaurant, code, courierName string
			fee                                          decimal.Decimal
			createdAt, revision                          int64
			deliveredAt                                  *int64
		)
		if err = rows.Scan(&id, &displayID, &restaurant, &fee, &code, &courierName,
			&createdAt, &deliveredAt, &revision); err != nil {
			return nil, err
		}

		// Rows delivered before the stamp existed count at their creation time.
		if deliveredAt == nil {
			deliveredAt = &createdAt
		}

		orderID, idErr := kernel.IDFromString(id)
		if idErr != nil {
			return nil, idErr
		}
		deliveryFee, feeErr := kernel.NewMoney(fee)
		if feeErr != nil {
			return nil, feeErr
		}

		o, restoreErr := order.RestoreOrder(order.Params{
			ID:                  orderID,
			DisplayID:           displayID,
			RestaurantName:      restaurant,
			DeliveryFee:         deliveryFee,
			ConfirmationCode:    code,
			Status:              order.Delivered,
			AssignedCourierID:   query.CourierID(),
			AssignedCourierName: courierName,
			CreatedAt:           createdAt,
			DeliveredAt:         deliveredAt,
			Revision:            revision,
		})
		if restoreErr != nil {
			return nil, restoreErr
		}
		orders = append(orders, o)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
