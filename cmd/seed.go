package cmd

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// DemoCourierID is the approved courier created by SeedDemo.
const DemoCourierID = "demo-courier"

// SeedDemo stores an approved courier and a few open offers. Records that
// already exist are kept.
func SeedDemo(ctx context.Context, couriers ports.CourierRepository, orders ports.OrderRepository) error {
	demo, err := courier.RestoreCourier(kernel.MustIDFromString(DemoCourierID), "Demo Courier", true, courier.Presence{})
	if err != nil {
		return err
	}
	if err = couriers.Add(ctx, demo); err != nil && !errors.Is(err, errs.ErrValueIsInvalid) {
		return err
	}

	location, err := kernel.NewGeo(-12.0464, -77.0428)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	offers := []struct {
		restaurant string
		item       string
		price      string
		fee        string
	}{
		{"La Lucha", "Chicharron sandwich", "18.90", "4.50"},
		{"Pardos", "Quarter chicken", "24.00", "5.00"},
		{"Tanta", "Lomo saltado", "39.00", "6.50"},
	}

	for i, offer := range offers {
		price := kernel.MustMoney(offer.price)
		fee := kernel.MustMoney(offer.fee)
		item, itemErr := order.NewItem(offer.item, 1, price)
		if itemErr != nil {
			return itemErr
		}

		o, orderErr := order.NewOrder(order.Params{
			ID:               kernel.NewID(),
			RestaurantName:   offer.restaurant,
			Items:            []order.Item{item},
			Subtotal:         price,
			DeliveryFee:      fee,
			Total:            price.Add(fee),
			Customer:         order.NewCustomer("Customer", "+51 999 000 000", "Av. Arequipa 123", location),
			DeliveryAddress:  "Av. Arequipa 123",
			PaymentMethod:    "CASH",
			ConfirmationCode: "1234",
			Status:           order.ManualAssigned,
			CreatedAt:        now - int64(i)*60_000,
		})
		if orderErr != nil {
			return orderErr
		}
		if _, err = orders.Add(ctx, o); err != nil {
			return err
		}
	}

	return nil
}
