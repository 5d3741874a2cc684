package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/metrics"
)

// ErrSubscriptionClosed is returned by Mutate after Unsubscribe.
var ErrSubscriptionClosed = errors.New("subscription is closed")

// UpdateFunc receives the courier's visible orders, newest first. The slice
// and the orders are owned by the receiver.
type UpdateFunc func(orders []*order.Order)

// overlay is an optimistic patch shown on top of the base snapshot.
type overlay struct {
	generation uint64
	orderID    kernel.ID
	patch      order.Patch
	// ackRevision is the store revision of the accepted write, 0 while the
	// write is in flight.
	ackRevision int64
}

type pendingWrite struct {
	overlay *overlay
	ack     *Ack
}

// Subscription is one courier's order feed.
type Subscription struct {
	reconciler *Reconciler
	courierID  kernel.ID
	onUpdate   UpdateFunc
	logger     *slog.Logger

	// ctx is cancelled by Unsubscribe. writeCtx never is.
	ctx      context.Context
	cancel   context.CancelFunc
	writeCtx context.Context

	storeUnsubscribe func()
	closeOnce        sync.Once
	wake             chan struct{}
	done             chan struct{}

	// deliverMu serializes onUpdate calls.
	deliverMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	base       ports.Snapshot
	pending    *ports.Snapshot
	dirty      bool
	overlays   []*overlay
	generation uint64
	visible    []*order.Order
	initial    []*order.Order
	timers     map[uint64]*time.Timer
	timerSeq   uint64

	writeMu    sync.Mutex
	writeQueue []pendingWrite
	writing    bool
}

func newSubscription(
	ctx context.Context,
	r *Reconciler,
	courierID kernel.ID,
	onUpdate UpdateFunc,
	snapshot ports.Snapshot,
) *Subscription {
	detached := context.WithoutCancel(ctx)
	subCtx, cancel := context.WithCancel(detached)

	s := &Subscription{
		reconciler: r,
		courierID:  courierID,
		onUpdate:   onUpdate,
		logger:     r.logger.With("courier_id", courierID.String()),
		ctx:        subCtx,
		cancel:     cancel,
		writeCtx:   detached,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		base:       snapshot,
		timers:     make(map[uint64]*time.Timer),
	}
	s.visible = s.viewLocked()
	s.initial = cloneOrders(s.visible)
	return s
}

// CourierID returns the courier the feed belongs to.
func (s *Subscription) CourierID() kernel.ID {
	return s.courierID
}

// InitialOrders returns the visible list computed when the feed opened.
func (s *Subscription) InitialOrders() []*order.Order {
	return cloneOrders(s.initial)
}

// Orders returns the current visible list including optimistic overlays.
func (s *Subscription) Orders() []*order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.visible)
}

// Revision returns the revision of the last snapshot taken into the view.
func (s *Subscription) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.Revision
}

// Done is closed by Unsubscribe.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Mutate applies patch to the local view, hands the new list to onUpdate
// before returning and queues the store write. Writes of one subscription
// reach the store in call order.
//
// Errors are returned synchronously when the patch cannot apply to what the
// courier currently sees: errs.ObjectNotFoundError for orders outside the
// view, and the order package errors for lost claims or illegal steps. The
// store outcome is reported through the returned Ack.
func (s *Subscription) Mutate(orderID kernel.ID, patch order.Patch) (*Ack, error) {
	s.deliverMu.Lock()
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		s.deliverMu.Unlock()
		return nil, ErrSubscriptionClosed
	}

	current := findOrder(s.visible, orderID)
	if current == nil {
		s.mu.Unlock()
		s.deliverMu.Unlock()
		return nil, errs.NewObjectNotFoundError("orderID", orderID.String())
	}
	if err := current.Clone().Apply(patch); err != nil {
		s.mu.Unlock()
		s.deliverMu.Unlock()
		return nil, err
	}

	s.generation++
	ov := &overlay{generation: s.generation, orderID: orderID, patch: patch}
	s.overlays = append(s.overlays, ov)
	s.visible = s.viewLocked()
	view := cloneOrders(s.visible)
	s.mu.Unlock()

	s.onUpdate(view)
	s.deliverMu.Unlock()

	ack := newAck()
	s.enqueueWrite(pendingWrite{overlay: ov, ack: ack})
	s.scheduleRefetch()

	return ack, nil
}

// Unsubscribe stops the feed. It is idempotent and safe to call from
// onUpdate. A delivery already running when it is called may still finish.
func (s *Subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		for id, t := range s.timers {
			t.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()

		s.cancel()
		s.stopStoreFeed()
		s.reconciler.unregister(s)
		metrics.ActiveSubscriptions.Dec()
		close(s.done)

		s.logger.Info("Order feed closed")
	})
}

func (s *Subscription) stopStoreFeed() {
	if s.storeUnsubscribe == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Store unsubscribe panicked", "panic", r)
		}
	}()
	s.storeUnsubscribe()
}

// offer is the store's snapshot handler. It never blocks: the newest
// snapshot replaces any undelivered one.
func (s *Subscription) offer(snapshot ports.Snapshot, err error) {
	if err != nil {
		s.logger.Warn("Order feed interrupted, keeping last snapshot", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if snapshot.Revision < s.latestRevisionLocked() {
		metrics.SnapshotsDroppedTotal.Inc()
		return
	}
	if s.pending != nil {
		metrics.SnapshotsDroppedTotal.Inc()
	}
	s.pending = &snapshot
	s.signalLocked()
}

func (s *Subscription) latestRevisionLocked() int64 {
	if s.pending != nil && s.pending.Revision > s.base.Revision {
		return s.pending.Revision
	}
	return s.base.Revision
}

func (s *Subscription) signalLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.deliver()
		}
	}
}

func (s *Subscription) deliver() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.closed || (s.pending == nil && !s.dirty) {
		s.mu.Unlock()
		return
	}

	if s.pending != nil {
		snapshot := *s.pending
		s.pending = nil
		if snapshot.Revision >= s.base.Revision {
			s.base = snapshot
			s.pruneOverlaysLocked()
			metrics.SnapshotsDeliveredTotal.Inc()
		} else {
			metrics.SnapshotsDroppedTotal.Inc()
		}
	}
	s.dirty = false

	s.visible = s.viewLocked()
	view := cloneOrders(s.visible)
	s.mu.Unlock()

	s.onUpdate(view)
}

// viewLocked replays the overlays on a copy of the base snapshot. Overlays
// that no longer apply, because the store moved the order on or removed
// it, are discarded.
func (s *Subscription) viewLocked() []*order.Order {
	orders := make([]*order.Order, 0, len(s.base.Orders))
	index := make(map[string]int, len(s.base.Orders))
	for _, o := range s.base.Orders {
		if o == nil {
			continue
		}
		index[o.ID().String()] = len(orders)
		orders = append(orders, o.Clone())
	}

	kept := s.overlays[:0]
	for _, ov := range s.overlays {
		i, ok := index[ov.orderID.String()]
		if !ok {
			continue
		}
		if err := orders[i].Apply(ov.patch); err != nil {
			continue
		}
		kept = append(kept, ov)
	}
	clear(s.overlays[len(kept):])
	s.overlays = kept

	return s.reconciler.filter.VisibleOrders(orders, s.courierID)
}

// pruneOverlaysLocked drops overlays whose write is already part of the
// base snapshot.
func (s *Subscription) pruneOverlaysLocked() {
	revisions := make(map[string]int64, len(s.base.Orders))
	for _, o := range s.base.Orders {
		if o != nil {
			revisions[o.ID().String()] = o.Revision()
		}
	}

	kept := s.overlays[:0]
	for _, ov := range s.overlays {
		if ov.ackRevision > 0 && revisions[ov.orderID.String()] >= ov.ackRevision {
			continue
		}
		kept = append(kept, ov)
	}
	clear(s.overlays[len(kept):])
	s.overlays = kept
}

func (s *Subscription) removeOverlayLocked(generation uint64) {
	for i, ov := range s.overlays {
		if ov.generation == generation {
			s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
			return
		}
	}
}

func (s *Subscription) enqueueWrite(w pendingWrite) {
	s.writeMu.Lock()
	s.writeQueue = append(s.writeQueue, w)
	start := !s.writing
	s.writing = true
	s.writeMu.Unlock()

	if start {
		go s.drainWrites()
	}
}

func (s *Subscription) drainWrites() {
	for {
		s.writeMu.Lock()
		if len(s.writeQueue) == 0 {
			s.writing = false
			s.writeMu.Unlock()
			return
		}
		w := s.writeQueue[0]
		s.writeQueue = s.writeQueue[1:]
		s.writeMu.Unlock()

		s.write(w)
	}
}

func (s *Subscription) write(w pendingWrite) {
	ov := w.overlay
	revision, err := s.reconciler.store.ApplyPatch(s.writeCtx, ov.orderID, ov.patch)

	s.mu.Lock()
	if err != nil {
		s.removeOverlayLocked(ov.generation)
		if !s.closed {
			s.dirty = true
			s.signalLocked()
		}
	} else {
		ov.ackRevision = revision
		s.pruneOverlaysLocked()
	}
	s.mu.Unlock()

	s.recordWrite(ov, revision, err)
	w.ack.resolve(revision, err)
}

func (s *Subscription) recordWrite(ov *overlay, revision int64, err error) {
	status := ov.patch.Status.String()
	logger := s.logger.With("order_id", ov.orderID.String(), "status", status)

	switch {
	case err == nil:
		metrics.OrderWritesTotal.WithLabelValues(status, metrics.ResultAccepted).Inc()
		logger.Info("Order write accepted", "revision", revision)
		s.publish(ov, revision)
	case errors.Is(err, order.ErrNotAvailable):
		metrics.OrderWritesTotal.WithLabelValues(status, metrics.ResultRejected).Inc()
		metrics.AcceptRacesLostTotal.Inc()
		logger.Info("Claim lost to another courier")
	case errors.Is(err, order.ErrIllegalTransition), errors.Is(err, errs.ErrObjectNotFound):
		metrics.OrderWritesTotal.WithLabelValues(status, metrics.ResultRejected).Inc()
		logger.Warn("Order write rejected by store", "error", err)
	default:
		metrics.OrderWritesTotal.WithLabelValues(status, metrics.ResultFailed).Inc()
		logger.Error("Order write failed", "error", err)
	}
}

func (s *Subscription) publish(ov *overlay, revision int64) {
	if s.reconciler.publisher == nil {
		return
	}

	courierID := s.courierID.String()
	if ov.patch.Assignee != nil {
		courierID = ov.patch.Assignee.ID.String()
	}

	event := ports.OrderChangedEvent{
		OrderID:    ov.orderID.String(),
		Status:     ov.patch.Status.String(),
		CourierID:  courierID,
		Revision:   revision,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.reconciler.publisher.PublishOrderChanged(s.writeCtx, event); err != nil {
		s.logger.Error("Failed to publish order changed event", "order_id", event.OrderID, "error", err)
	}
}

// scheduleRefetch arms a one-shot timer that pulls a fresh snapshot. Timers
// are stopped by Unsubscribe.
func (s *Subscription) scheduleRefetch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.timerSeq++
	id := s.timerSeq
	s.timers[id] = time.AfterFunc(s.reconciler.refetchDelay, func() {
		s.mu.Lock()
		_, armed := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()

		if armed {
			s.refetch()
		}
	})
}

func (s *Subscription) refetch() {
	snapshot, err := s.reconciler.store.FetchAll(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		metrics.RefetchFailuresTotal.Inc()
		s.logger.Warn("Forced re-fetch failed, keeping optimistic view", "error", err)
		return
	}
	s.offer(snapshot, nil)
}

func findOrder(orders []*order.Order, id kernel.ID) *order.Order {
	for _, o := range orders {
		if o.ID().IsEqual(id) {
			return o
		}
	}
	return nil
}

func cloneOrders(orders []*order.Order) []*order.Order {
	out := make([]*order.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
