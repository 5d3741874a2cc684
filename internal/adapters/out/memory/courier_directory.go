package memory

import (
	"context"
	"sync"

	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

var (
	_ ports.CourierRepository = (*CourierDirectory)(nil)
	_ ports.AuthGateway       = (*CourierDirectory)(nil)
)

// CourierDirectory is an in-process courier registry that also answers
// approval checks.
type CourierDirectory struct {
	mu       sync.RWMutex
	couriers map[string]*courier.Courier
}

func NewCourierDirectory() *CourierDirectory {
	return &CourierDirectory{couriers: make(map[string]*courier.Courier)}
}

func (d *CourierDirectory) Add(_ context.Context, c *courier.Courier) error {
	if err := c.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.couriers[c.ID().String()] = c
	return nil
}

func (d *CourierDirectory) Get(_ context.Context, id kernel.ID) (*courier.Courier, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.couriers[id.String()]
	if !ok {
		return nil, errs.NewObjectNotFoundError("courierID", id.String())
	}
	return c, nil
}

// IsApproved reports false for unknown couriers.
func (d *CourierDirectory) IsApproved(ctx context.Context, id kernel.ID) (bool, error) {
	c, err := d.Get(ctx, id)
	if err != nil {
		return false, nil
	}
	return c.IsApproved(), nil
}

// SetApproved replaces the approval flag of a known courier.
func (d *CourierDirectory) SetApproved(id kernel.ID, approved bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.couriers[id.String()]
	if !ok {
		return errs.NewObjectNotFoundError("courierID", id.String())
	}
	updated, err := courier.RestoreCourier(c.ID(), c.DisplayName(), approved, c.Presence())
	if err != nil {
		return err
	}
	d.couriers[id.String()] = updated
	return nil
}
