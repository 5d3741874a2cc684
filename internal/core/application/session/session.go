package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"
)

// Session is an open courier session.
type Session struct {
	manager *Manager
	courier *courier.Courier
	sub     *reconciler.Subscription
	logger  *slog.Logger

	mu          sync.Mutex
	stopMonitor func()
	watchers    map[uint64]chan []*order.Order
	nextWatcher uint64
	closing     bool
	closed      bool
	revoked     bool

	done chan struct{}
}

func newSession(m *Manager, c *courier.Courier) *Session {
	return &Session{
		manager:  m,
		courier:  c,
		logger:   m.logger.With("courier_id", c.ID().String()),
		watchers: make(map[uint64]chan []*order.Order),
		done:     make(chan struct{}),
	}
}

func (s *Session) Courier() *courier.Courier {
	return s.courier
}

// InitialOrders returns the list computed when the session opened.
func (s *Session) InitialOrders() []*order.Order {
	return s.sub.InitialOrders()
}

// Orders returns the courier's current visible list.
func (s *Session) Orders() []*order.Order {
	return s.sub.Orders()
}

// Order returns one visible order or errs.ObjectNotFoundError.
func (s *Session) Order(orderID kernel.ID) (*order.Order, error) {
	for _, o := range s.sub.Orders() {
		if o.ID().IsEqual(orderID) {
			return o, nil
		}
	}
	return nil, errs.NewObjectNotFoundError("orderID", orderID.String())
}

// Mutate forwards to the subscription.
func (s *Session) Mutate(orderID kernel.ID, patch order.Patch) (*reconciler.Ack, error) {
	return s.sub.Mutate(orderID, patch)
}

// Earnings sums the delivery fees of the delivered orders in the current
// list.
func (s *Session) Earnings(now time.Time) services.EarningsWindow {
	return s.manager.earnings.Aggregate(s.sub.Orders(), now)
}

// Watch returns a channel receiving the newest visible list after each
// change. Lists are shared between watchers and must not be modified. A
// slow reader only misses intermediate lists. The channel is
// closed when the session ends or cancel is called.
func (s *Session) Watch() (<-chan []*order.Order, func()) {
	ch := make(chan []*order.Order, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}
}

// Done is closed when the session ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Revoked reports whether the session was ended because the courier lost
// approval.
func (s *Session) Revoked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked
}

// Close ends the session: the feed and the monitor stop, the marker is
// cleared and the courier is reported offline. It is idempotent and returns
// once the session has ended.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closing = true
	stop := s.stopMonitor
	s.mu.Unlock()

	// stop waits for a running check. A check that finds the courier
	// unapproved meanwhile sees closing and leaves the teardown to us.
	if stop != nil {
		stop()
	}
	s.teardown(ctx, true)
}

// revoke runs on the validity job after it closed the feeds and cleared
// the marker. The job has already halted its scheduler, so stop returns
// without waiting.
func (s *Session) revoke() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.revoked = true
	stop := s.stopMonitor
	s.mu.Unlock()

	s.logger.Info("Session revoked")
	if stop != nil {
		stop()
	}
	s.teardown(context.Background(), false)
}

func (s *Session) teardown(ctx context.Context, clearMarker bool) {
	s.sub.Unsubscribe()
	if clearMarker {
		s.manager.clearMarker(ctx, s.courier.ID())
	}
	s.manager.report(ctx, s.courier.ID(), false, false)
	s.manager.forget(s)

	s.mu.Lock()
	s.closed = true
	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w)
	}
	s.mu.Unlock()

	close(s.done)
	s.logger.InfoContext(ctx, "Session closed")
}

// setStopMonitor stores the monitor's stop func, or runs it right away when
// the session already ended.
func (s *Session) setStopMonitor(stop func()) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		stop()
		return
	}
	s.stopMonitor = stop
	s.mu.Unlock()
}

// broadcast is the subscription callback. It never blocks.
func (s *Session) broadcast(orders []*order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.watchers {
		select {
		case <-w:
		default:
		}
		w <- orders
	}
}
