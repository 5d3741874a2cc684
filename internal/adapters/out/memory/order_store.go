// Package memory provides an in-process order store with the same
// compare-and-set semantics as the Postgres adapter. It backs local runs
// without a database and the application tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

var (
	_ ports.OrderStore      = (*OrderStore)(nil)
	_ ports.OrderRepository = (*OrderStore)(nil)
)

// OrderStore keeps orders in a map guarded by a mutex. Every write bumps a
// store wide revision counter and pushes a full snapshot to subscribers.
type OrderStore struct {
	mu          sync.Mutex
	revision    int64
	orders      map[string]*order.Order
	subscribers map[uint64]ports.SnapshotHandler
	nextSubID   uint64

	// notifyMu keeps pushes in revision order.
	notifyMu sync.Mutex
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:      make(map[string]*order.Order),
		subscribers: make(map[uint64]ports.SnapshotHandler),
	}
}

// Add stores a copy of o.
func (s *OrderStore) Add(ctx context.Context, o *order.Order) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.NewStoreUnavailableError("add", err)
	}
	if err := o.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if _, exists := s.orders[o.ID().String()]; exists {
		s.mu.Unlock()
		return 0, errs.NewValueIsInvalidError("order id already exists: " + o.ID().String())
	}

	stored := o.Clone()
	s.revision++
	if err := stored.SetRevision(s.revision); err != nil {
		s.revision--
		s.mu.Unlock()
		return 0, err
	}
	s.orders[o.ID().String()] = stored

	s.publishAndUnlock()
	return stored.Revision(), nil
}

// Get returns a copy of the stored order.
func (s *OrderStore) Get(ctx context.Context, id kernel.ID) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewStoreUnavailableError("get", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id.String()]
	if !ok {
		return nil, errs.NewObjectNotFoundError("orderID", id.String())
	}
	return o.Clone(), nil
}

func (s *OrderStore) FetchAll(ctx context.Context) (ports.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return ports.Snapshot{}, errs.NewStoreUnavailableError("fetch all", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// SubscribeAll registers onSnapshot. Handlers are called outside the store
// lock, one at a time, in revision order.
func (s *OrderStore) SubscribeAll(ctx context.Context, onSnapshot ports.SnapshotHandler) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewStoreUnavailableError("subscribe all", err)
	}
	if onSnapshot == nil {
		return nil, errs.NewValueIsRequiredError("onSnapshot")
	}

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = onSnapshot
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}, nil
}

// ApplyPatch checks the precondition and writes the patch under one lock,
// so of two competing claims exactly one succeeds.
func (s *OrderStore) ApplyPatch(ctx context.Context, orderID kernel.ID, patch order.Patch) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.NewStoreUnavailableError("apply patch", err)
	}

	s.mu.Lock()
	current, ok := s.orders[orderID.String()]
	if !ok {
		s.mu.Unlock()
		return 0, errs.NewObjectNotFoundError("orderID", orderID.String())
	}

	next := current.Clone()
	if err := next.Apply(patch); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.revision++
	if err := next.SetRevision(s.revision); err != nil {
		s.revision--
		s.mu.Unlock()
		return 0, err
	}
	s.orders[orderID.String()] = next

	s.publishAndUnlock()
	return next.Revision(), nil
}

// Revision returns the store wide revision counter.
func (s *OrderStore) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// publishAndUnlock must be called with mu held. It releases mu before the
// handlers run.
func (s *OrderStore) publishAndUnlock() {
	snapshot := s.snapshotLocked()
	handlers := make([]ports.SnapshotHandler, 0, len(s.subscribers))
	for _, h := range s.subscribers {
		handlers = append(handlers, h)
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, h := range handlers {
		h(cloneSnapshot(snapshot), nil)
	}
}

func (s *OrderStore) snapshotLocked() ports.Snapshot {
	orders := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o.Clone())
	}
	slices.SortFunc(orders, func(a, b *order.Order) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return ports.Snapshot{Revision: s.revision, Orders: orders}
}

func cloneSnapshot(snapshot ports.Snapshot) ports.Snapshot {
	orders := make([]*order.Order, len(snapshot.Orders))
	for i, o := range snapshot.Orders {
		orders[i] = o.Clone()
	}
	return ports.Snapshot{Revision: snapshot.Revision, Orders: orders}
}
