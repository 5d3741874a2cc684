// Package orderrepo persists orders in PostgreSQL and turns row changes into
// store snapshots.
package orderrepo

import (
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/shopspring/decimal"
)

// OrderDTO is one row of the orders table.
type OrderDTO struct {
	ID                  string          `gorm:"type:text;primaryKey"`
	DisplayID           string          `gorm:"type:text;not null"`
	RestaurantName      string          `gorm:"type:text"`
	Items               []ItemDTO       `gorm:"type:jsonb;serializer:json"`
	Subtotal            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DeliveryFee         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Total               decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Customer            CustomerDTO     `gorm:"type:jsonb;serializer:json"`
	PickupLocationURL   string          `gorm:"type:text"`
	CustomerURL         string          `gorm:"type:text"`
	DeliveryAddress     string          `gorm:"type:text"`
	DeliveryReferences  string          `gorm:"type:text"`
	PaymentMethod       string          `gorm:"type:text"`
	ConfirmationCode    string          `gorm:"type:varchar(4);not null"`
	Status              string          `gorm:"type:varchar(32);not null;index"`
	AssignedCourierID   string          `gorm:"type:text;not null;default:'';index"`
	AssignedCourierName string          `gorm:"type:text;not null;default:''"`
	CandidateCourierIDs []string        `gorm:"type:jsonb;serializer:json"`
	CreatedAt           int64           `gorm:"not null;autoCreateTime:false"`
	DeliveredAt         *int64
	Revision            int64 `gorm:"not null;index"`
}

func (OrderDTO) TableName() string {
	return "orders"
}

type ItemDTO struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type CustomerDTO struct {
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func fromDomain(o *order.Order) OrderDTO {
	items := make([]ItemDTO, 0, len(o.Items()))
	for _, item := range o.Items() {
		items = append(items, ItemDTO{
			Name:      item.Name(),
			Quantity:  item.Quantity(),
			UnitPrice: item.UnitPrice().String(),
		})
	}

	candidates := make([]string, 0, len(o.CandidateCourierIDs()))
	for _, id := range o.CandidateCourierIDs() {
		candidates = append(candidates, id.String())
	}

	customer := o.Customer()
	var assignee string
	if !o.AssignedCourierID().IsZero() {
		assignee = o.AssignedCourierID().String()
	}

	return OrderDTO{
		ID:             o.ID().String(),
		DisplayID:      o.DisplayID(),
		RestaurantName: o.RestaurantName(),
		Items:          items,
		Subtotal:       o.Subtotal().Decimal(),
		DeliveryFee:    o.DeliveryFee().Decimal(),
		Total:          o.Total().Decimal(),
		Customer: CustomerDTO{
			Name:      customer.Name(),
			Phone:     customer.Phone(),
			Address:   customer.Address(),
			Latitude:  customer.Location().Latitude(),
			Longitude: customer.Location().Longitude(),
		},
		PickupLocationURL:   o.PickupLocationURL(),
		CustomerURL:         o.CustomerURL(),
		DeliveryAddress:     o.DeliveryAddress(),
		DeliveryReferences:  o.DeliveryReferences(),
		PaymentMethod:       o.PaymentMethod(),
		ConfirmationCode:    o.ConfirmationCode(),
		Status:              o.Status().String(),
		AssignedCourierID:   assignee,
		AssignedCourierName: o.AssignedCourierName(),
		CandidateCourierIDs: candidates,
		CreatedAt:           o.CreatedAt(),
		DeliveredAt:         o.DeliveredAt(),
		Revision:            o.Revision(),
	}
}

func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.IDFromString(dto.ID)
	if err != nil {
		return nil, err
	}

	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	items := make([]order.Item, 0, len(dto.Items))
	for _, itemDTO := range dto.Items {
		price, priceErr := kernel.MoneyFromString(itemDTO.UnitPrice)
		if priceErr != nil {
			return nil, priceErr
		}
		item, itemErr := order.NewItem(itemDTO.Name, itemDTO.Quantity, price)
		if itemErr != nil {
			return nil, itemErr
		}
		items = append(items, item)
	}

	var location kernel.Geo
	if dto.Customer.Latitude != 0 || dto.Customer.Longitude != 0 {
		location, err = kernel.NewGeo(dto.Customer.Latitude, dto.Customer.Longitude)
		if err != nil {
			return nil, err
		}
	}

	var assignee kernel.ID
	if dto.AssignedCourierID != "" {
		if assignee, err = kernel.IDFromString(dto.AssignedCourierID); err != nil {
			return nil, err
		}
	}

	candidates := make([]kernel.ID, 0, len(dto.CandidateCourierIDs))
	for _, raw := range dto.CandidateCourierIDs {
		candidate, idErr := kernel.IDFromString(raw)
		if idErr != nil {
			return nil, idErr
		}
		candidates = append(candidates, candidate)
	}

	subtotal, err := kernel.NewMoney(dto.Subtotal)
	if err != nil {
		return nil, err
	}
	fee, err := kernel.NewMoney(dto.DeliveryFee)
	if err != nil {
		return nil, err
	}
	total, err := kernel.NewMoney(dto.Total)
	if err != nil {
		return nil, err
	}

	return order.RestoreOrder(order.Params{
		ID:                  id,
		DisplayID:           dto.DisplayID,
		RestaurantName:      dto.RestaurantName,
		Items:               items,
		Subtotal:            subtotal,
		DeliveryFee:         fee,
		Total:               total,
		Customer:            order.NewCustomer(dto.Customer.Name, dto.Customer.Phone, dto.Customer.Address, location),
		PickupLocationURL:   dto.PickupLocationURL,
		CustomerURL:         dto.CustomerURL,
		DeliveryAddress:     dto.DeliveryAddress,
		DeliveryReferences:  dto.DeliveryReferences,
		PaymentMethod:       dto.PaymentMethod,
		ConfirmationCode:    dto.ConfirmationCode,
		Status:              status,
		AssignedCourierID:   assignee,
		AssignedCourierName: dto.AssignedCourierName,
		CandidateCourierIDs: candidates,
		CreatedAt:           dto.CreatedAt,
		DeliveredAt:         dto.DeliveredAt,
		Revision:            dto.Revision,
	})
}
