package http

import (
	"time"

	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
)

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Item struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type Customer struct {
	Name      string  `json:"name,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Order is the courier-facing order. The confirmation code is never sent.
type Order struct {
	ID                  string   `json:"id"`
	DisplayID           string   `json:"displayId"`
	RestaurantName      string   `json:"restaurantName,omitempty"`
	Status              string   `json:"status"`
	StatusLabel         string   `json:"statusLabel"`
	Items               []Item   `json:"items"`
	Subtotal            string   `json:"subtotal"`
	DeliveryFee         string   `json:"deliveryFee"`
	Total               string   `json:"total"`
	Customer            Customer `json:"customer"`
	PickupLocationURL   string   `json:"pickupLocationUrl,omitempty"`
	CustomerURL         string   `json:"customerUrl,omitempty"`
	DeliveryAddress     string   `json:"deliveryAddress,omitempty"`
	DeliveryReferences  string   `json:"deliveryReferences,omitempty"`
	PaymentMethod       string   `json:"paymentMethod,omitempty"`
	AssignedCourierID   string   `json:"assignedCourierId,omitempty"`
	AssignedCourierName string   `json:"assignedCourierName,omitempty"`
	CreatedAt           int64    `json:"createdAt"`
	DeliveredAt         *int64   `json:"deliveredAt"`
	Revision            int64    `json:"revision"`
}

type Session struct {
	CourierID   string  `json:"courierId"`
	DisplayName string  `json:"displayName"`
	Orders      []Order `json:"orders"`
}

type Mutation struct {
	Order    *Order `json:"order,omitempty"`
	Accepted bool   `json:"accepted"`
	Revision int64  `json:"revision,omitempty"`
}

type AdvanceStatusRequest struct {
	Expected string `json:"expected"`
	Next     string `json:"next"`
}

type ConfirmDeliveryRequest struct {
	Code string `json:"code"`
}

type Earnings struct {
	Daily           string `json:"daily"`
	Weekly          string `json:"weekly"`
	Monthly         string `json:"monthly"`
	DailyOrderCount int    `json:"dailyOrderCount"`
}

type HistoryEntry struct {
	ID             string `json:"id"`
	DisplayID      string `json:"displayId"`
	RestaurantName string `json:"restaurantName,omitempty"`
	DeliveryFee    string `json:"deliveryFee"`
	CreatedAt      int64  `json:"createdAt"`
	DeliveredAt    *int64 `json:"deliveredAt"`
}

// MutationParams are the query parameters of the order commands.
type MutationParams struct {
	Wait *bool `form:"wait,omitempty" json:"wait,omitempty"`
}

type GetEarningsParams struct {
	At *time.Time `form:"at,omitempty" json:"at,omitempty"`
}

type GetHistoryParams struct {
	Since *time.Time `form:"since,omitempty" json:"since,omitempty"`
	Limit *int       `form:"limit,omitempty" json:"limit,omitempty"`
}

func toOrder(o *order.Order) Order {
	items := make([]Item, 0, len(o.Items()))
	for _, item := range o.Items() {
		items = append(items, Item{
			Name:      item.Name(),
			Quantity:  item.Quantity(),
			UnitPrice: item.UnitPrice().String(),
		})
	}

	customer := o.Customer()
	location := customer.Location()

	return Order{
		ID:             o.ID().String(),
		DisplayID:      o.DisplayID(),
		RestaurantName: o.RestaurantName(),
		Status:         o.Status().String(),
		StatusLabel:    o.Status().Label(),
		Items:          items,
		Subtotal:       o.Subtotal().String(),
		DeliveryFee:    o.DeliveryFee().String(),
		Total:          o.Total().String(),
		Customer: Customer{
			Name:      customer.Name(),
			Phone:     customer.Phone(),
			Address:   customer.Address(),
			Latitude:  location.Latitude(),
			Longitude: location.Longitude(),
		},
		PickupLocationURL:   o.PickupLocationURL(),
		CustomerURL:         o.CustomerURL(),
		DeliveryAddress:     o.DeliveryAddress(),
		DeliveryReferences:  o.DeliveryReferences(),
		PaymentMethod:       o.PaymentMethod(),
		AssignedCourierID:   o.AssignedCourierID().String(),
		AssignedCourierName: o.AssignedCourierName(),
		CreatedAt:           o.CreatedAt(),
		DeliveredAt:         o.DeliveredAt(),
		Revision:            o.Revision(),
	}
}

func toOrders(orders []*order.Order) []Order {
	response := make([]Order, len(orders))
	for i, o := range orders {
		response[i] = toOrder(o)
	}
	return response
}

func toEarnings(window services.EarningsWindow) Earnings {
	return Earnings{
		Daily:           window.Daily.String(),
		Weekly:          window.Weekly.String(),
		Monthly:         window.Monthly.String(),
		DailyOrderCount: window.DailyOrderCount,
	}
}

func toHistory(history []queries.GetCourierHistoryQueryResponse) []HistoryEntry {
	response := make([]HistoryEntry, len(history))
	for i, entry := range history {
		response[i] = HistoryEntry{
			ID:             entry.ID.String(),
			DisplayID:      entry.DisplayID,
			RestaurantName: entry.RestaurantName,
			DeliveryFee:    entry.DeliveryFee.String(),
			CreatedAt:      entry.CreatedAt,
			DeliveredAt:    entry.DeliveredAt,
		}
	}
	return response
}
