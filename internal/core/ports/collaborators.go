package ports

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
)

// CourierRepository resolves courier identities.
type CourierRepository interface {
	// Add stores a new courier.
	Add(ctx context.Context, c *courier.Courier) error

	// Get returns errs.ObjectNotFoundError for unknown ids.
	Get(ctx context.Context, id kernel.ID) (*courier.Courier, error)
}

// AuthGateway answers whether a courier is still authorized. Unknown
// couriers are reported as not approved.
type AuthGateway interface {
	IsApproved(ctx context.Context, courierID kernel.ID) (bool, error)
}

// PresenceSink records online/active flags. Callers do not read them back.
type PresenceSink interface {
	Report(ctx context.Context, courierID kernel.ID, online, active bool) error
}

// SessionMarkerStore keeps the "courier is signed in" marker that survives
// process restarts.
type SessionMarkerStore interface {
	Save(ctx context.Context, courierID kernel.ID) error
	Exists(ctx context.Context, courierID kernel.ID) (bool, error)
	Clear(ctx context.Context, courierID kernel.ID) error
}

// OrderChangedEvent describes an accepted write to an order.
type OrderChangedEvent struct {
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	CourierID  string    `json:"courierId,omitempty"`
	Revision   int64     `json:"revision"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher forwards accepted writes to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderChanged(ctx context.Context, event OrderChangedEvent) error
}
