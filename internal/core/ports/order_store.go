// Package ports defines the contracts between the dispatch core and the
// collaborators it depends on: the order store, the courier directory, the
// authorization gateway, presence reporting, session markers and order event
// publishing.
package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// Snapshot is a full, authoritative state of the order collection.
// Revision grows with every accepted write; a snapshot with a lower revision
// than one already seen is stale.
type Snapshot struct {
	Revision int64
	Orders   []*order.Order
}

// SnapshotHandler receives every snapshot pushed by the store, or the error
// that interrupted the push channel. It must not block.
type SnapshotHandler func(snapshot Snapshot, err error)

// OrderStore is the eventually consistent order collection shared by all
// courier sessions.
type OrderStore interface {
	// FetchAll reads the current snapshot.
	FetchAll(ctx context.Context) (Snapshot, error)

	// SubscribeAll registers onSnapshot for every future snapshot. The
	// returned function stops delivery and may be called more than once.
	SubscribeAll(ctx context.Context, onSnapshot SnapshotHandler) (func(), error)

	// ApplyPatch writes patch to one order atomically with its
	// precondition. It returns the revision of the write, or
	// errs.ObjectNotFoundError, order.NotAvailableError,
	// order.IllegalTransitionError, errs.StoreUnavailableError.
	ApplyPatch(ctx context.Context, orderID kernel.ID, patch order.Patch) (int64, error)
}

// OrderRepository publishes and reads single orders. It is used by the
// upstream allocator and by tooling, never by courier operations.
type OrderRepository interface {
	// Add stores a new order and returns its revision.
	Add(ctx context.Context, aggregate *order.Order) (int64, error)

	// Get reads a single order.
	Get(ctx context.Context, id kernel.ID) (*order.Order, error)
}
