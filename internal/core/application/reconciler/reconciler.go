package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/metrics"
)

// DefaultRefetchDelay is the pause between a mutation and its forced re-fetch.
const DefaultRefetchDelay = 500 * time.Millisecond

// Reconciler opens order feed subscriptions on top of an OrderStore and keeps
// track of them per courier.
type Reconciler struct {
	store        ports.OrderStore
	publisher    ports.OrderEventPublisher
	filter       services.AssignmentFilter
	refetchDelay time.Duration
	logger       *slog.Logger

	mu            sync.Mutex
	subscriptions map[string]map[*Subscription]struct{}
}

// New creates a Reconciler. publisher may be nil. A non-positive
// refetchDelay selects DefaultRefetchDelay.
func New(
	store ports.OrderStore,
	publisher ports.OrderEventPublisher,
	refetchDelay time.Duration,
	logger *slog.Logger,
) (*Reconciler, error) {
	if store == nil {
		return nil, errs.NewValueIsRequiredError("store")
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}
	if refetchDelay <= 0 {
		refetchDelay = DefaultRefetchDelay
	}

	return &Reconciler{
		store:         store,
		publisher:     publisher,
		filter:        services.NewAssignmentFilter(),
		refetchDelay:  refetchDelay,
		logger:        logger.With("component", "reconciler"),
		subscriptions: make(map[string]map[*Subscription]struct{}),
	}, nil
}

// Subscribe reads the current snapshot, registers for pushes and starts the
// consumer goroutine. ctx bounds the initial read only; the subscription
// lives until Unsubscribe or UnsubscribeCourier.
//
// onUpdate receives every new visible list. Calls never overlap. onUpdate
// must not call Mutate on the same subscription synchronously.
func (r *Reconciler) Subscribe(ctx context.Context, courierID kernel.ID, onUpdate UpdateFunc) (*Subscription, error) {
	if err := courierID.Validate(); err != nil {
		return nil, err
	}
	if onUpdate == nil {
		return nil, errs.NewValueIsRequiredError("onUpdate")
	}

	snapshot, err := r.store.FetchAll(ctx)
	if err != nil {
		return nil, storeUnavailable("fetch all", err)
	}

	s := newSubscription(ctx, r, courierID, onUpdate, snapshot)

	unsubscribe, err := r.store.SubscribeAll(s.ctx, s.offer)
	if err != nil {
		s.cancel()
		return nil, storeUnavailable("subscribe all", err)
	}
	s.storeUnsubscribe = unsubscribe

	s.logger.InfoContext(ctx, "Order feed opened", "revision", snapshot.Revision, "visible", len(s.initial))

	r.register(s)
	metrics.ActiveSubscriptions.Inc()
	go s.run()

	return s, nil
}

// UnsubscribeCourier terminates every subscription of courierID and returns
// how many were open.
func (r *Reconciler) UnsubscribeCourier(courierID kernel.ID) int {
	r.mu.Lock()
	subs := make([]*Subscription, 0, len(r.subscriptions[courierID.String()]))
	for s := range r.subscriptions[courierID.String()] {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	return len(subs)
}

func (r *Reconciler) register(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.courierID.String()
	if r.subscriptions[key] == nil {
		r.subscriptions[key] = make(map[*Subscription]struct{})
	}
	r.subscriptions[key][s] = struct{}{}
}

func (r *Reconciler) unregister(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.courierID.String()
	delete(r.subscriptions[key], s)
	if len(r.subscriptions[key]) == 0 {
		delete(r.subscriptions, key)
	}
}

func storeUnavailable(operation string, err error) error {
	if errors.Is(err, errs.ErrStoreIsUnavailable) {
		return err
	}
	return errs.NewStoreUnavailableError(operation, err)
}
