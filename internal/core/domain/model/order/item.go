package order

import (
	"errors"
	"fmt"
	"strings"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// Item is one ordered line. Items never change after the order is created.
type Item struct {
	name      string
	quantity  int
	unitPrice kernel.Money
}

// NewItem validates the name and a positive quantity.
func NewItem(name string, quantity int, unitPrice kernel.Money) (Item, error) {
	var err error
	if strings.TrimSpace(name) == "" {
		err = errs.NewValueIsRequiredError("item name")
	}
	if quantity <= 0 {
		err = errors.Join(err, errs.NewValueIsInvalidErrorWithCause(
			"item quantity",
			fmt.Errorf("%d is not greater than 0", quantity),
		))
	}
	if err != nil {
		return Item{}, err
	}

	return Item{name: name, quantity: quantity, unitPrice: unitPrice}, nil
}

func (i Item) Name() string {
	return i.name
}

func (i Item) Quantity() int {
	return i.quantity
}

func (i Item) UnitPrice() kernel.Money {
	return i.unitPrice
}

// LineTotal returns unit price times quantity.
func (i Item) LineTotal() kernel.Money {
	return i.unitPrice.Mul(i.quantity)
}

// Customer holds the contact details shown to the assigned courier.
type Customer struct {
	name     string
	phone    string
	address  string
	location kernel.Geo
}

func NewCustomer(name, phone, address string, location kernel.Geo) Customer {
	return Customer{name: name, phone: phone, address: address, location: location}
}

func (c Customer) Name() string {
	return c.name
}

func (c Customer) Phone() string {
	return c.phone
}

func (c Customer) Address() string {
	return c.address
}

func (c Customer) Location() kernel.Geo {
	return c.location
}
