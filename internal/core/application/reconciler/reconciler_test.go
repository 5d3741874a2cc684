package reconciler_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/adapters/out/memory"
	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	refetchDelay = 20 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

var (
	riderA = kernel.MustIDFromString("rider-a")
	riderB = kernel.MustIDFromString("rider-b")
	o1     = kernel.MustIDFromString("o1")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newOrder(t *testing.T, id string, status order.Status, assignee string, createdAt int64) *order.Order {
	t.Helper()
	p := order.Params{
		ID:               kernel.MustIDFromString(id),
		DeliveryFee:      kernel.MustMoney("3.00"),
		ConfirmationCode: "2468",
		Status:           status,
		CreatedAt:        createdAt,
	}
	if assignee != "" {
		p.AssignedCourierID = kernel.MustIDFromString(assignee)
		p.AssignedCourierName = assignee
	}
	o, err := order.RestoreOrder(p)
	require.NoError(t, err)
	return o
}

type recorder struct {
	mu      sync.Mutex
	updates [][]*order.Order
}

func (r *recorder) onUpdate(orders []*order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, orders)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recorder) first() []*order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return nil
	}
	return r.updates[0]
}

func (r *recorder) last() []*order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return nil
	}
	return r.updates[len(r.updates)-1]
}

func find(orders []*order.Order, id kernel.ID) *order.Order {
	for _, o := range orders {
		if o.ID().IsEqual(id) {
			return o
		}
	}
	return nil
}

// fakeStore hands the push handler to the test so snapshots can be injected
// in any order.
type fakeStore struct {
	mu           sync.Mutex
	snapshot     ports.Snapshot
	fetchErr     error
	fetches      int
	handler      ports.SnapshotHandler
	unsubscribes int
	apply        func(orderID kernel.ID, patch order.Patch) (int64, error)
}

func (f *fakeStore) FetchAll(context.Context) (ports.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return ports.Snapshot{}, f.fetchErr
	}
	return f.snapshot, nil
}

func (f *fakeStore) SubscribeAll(_ context.Context, h ports.SnapshotHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribes++
	}, nil
}

func (f *fakeStore) ApplyPatch(_ context.Context, orderID kernel.ID, patch order.Patch) (int64, error) {
	return f.apply(orderID, patch)
}

func (f *fakeStore) push(snapshot ports.Snapshot) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(snapshot, nil)
}

func (f *fakeStore) setFetch(snapshot ports.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snapshot
	f.fetchErr = err
}

// gatedStore holds every write until the gate is closed.
type gatedStore struct {
	*memory.OrderStore
	gate chan struct{}
}

func (g *gatedStore) ApplyPatch(ctx context.Context, orderID kernel.ID, patch order.Patch) (int64, error) {
	<-g.gate
	return g.OrderStore.ApplyPatch(ctx, orderID, patch)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishOrderChanged(ctx context.Context, event ports.OrderChangedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newReconciler(t *testing.T, store ports.OrderStore, publisher ports.OrderEventPublisher) *reconciler.Reconciler {
	t.Helper()
	r, err := reconciler.New(store, publisher, refetchDelay, discardLogger())
	require.NoError(t, err)
	return r
}

func seededStore(t *testing.T, orders ...*order.Order) *memory.OrderStore {
	t.Helper()
	store := memory.NewOrderStore()
	for _, o := range orders {
		_, err := store.Add(t.Context(), o)
		require.NoError(t, err)
	}
	return store
}

func TestNew(t *testing.T) {
	t.Run("should require store and logger", func(t *testing.T) {
		_, err := reconciler.New(nil, nil, 0, discardLogger())
		require.ErrorIs(t, err, errs.ErrValueIsRequired)

		_, err = reconciler.New(memory.NewOrderStore(), nil, 0, nil)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
	})
}

func TestReconciler_Subscribe(t *testing.T) {
	t.Run("should return the filtered initial list and follow store pushes", func(t *testing.T) {
		store := seededStore(t,
			newOrder(t, "mine", order.Accepted, "rider-a", 10),
			newOrder(t, "theirs", order.Accepted, "rider-b", 20),
			newOrder(t, "o1", order.ManualAssigned, "", 30),
		)
		r := newReconciler(t, store, nil)
		rec := &recorder{}

		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		initial := sub.InitialOrders()
		require.Len(t, initial, 2)
		assert.Equal(t, "o1", initial[0].ID().String())
		assert.Equal(t, "mine", initial[1].ID().String())
		assert.Equal(t, 0, rec.count())

		_, err = store.Add(t.Context(), newOrder(t, "new", order.Accepted, "rider-a", 40))
		require.NoError(t, err)

		require.Eventually(t, func() bool { return len(rec.last()) == 3 }, waitFor, tick)
		assert.Equal(t, "new", rec.last()[0].ID().String())
	})

	t.Run("should fail with store unavailable when the first read fails", func(t *testing.T) {
		store := &fakeStore{fetchErr: errors.New("connection refused")}
		r := newReconciler(t, store, nil)

		sub, err := r.Subscribe(t.Context(), riderA, func([]*order.Order) {})

		require.ErrorIs(t, err, errs.ErrStoreIsUnavailable)
		assert.Nil(t, sub)
	})

	t.Run("should validate arguments", func(t *testing.T) {
		r := newReconciler(t, memory.NewOrderStore(), nil)

		_, err := r.Subscribe(t.Context(), kernel.ID{}, func([]*order.Order) {})
		require.Error(t, err)

		_, err = r.Subscribe(t.Context(), riderA, nil)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
	})

	t.Run("should outlive the context used to open it", func(t *testing.T) {
		store := seededStore(t)
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		ctx, cancel := context.WithCancel(t.Context())

		sub, err := r.Subscribe(ctx, riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()
		cancel()

		_, err = store.Add(t.Context(), newOrder(t, "o1", order.ManualAssigned, "", 1))
		require.NoError(t, err)

		require.Eventually(t, func() bool { return len(rec.last()) == 1 }, waitFor, tick)
	})
}

func TestSubscription_Ordering(t *testing.T) {
	t.Run("should drop snapshots older than the delivered one", func(t *testing.T) {
		store := &fakeStore{snapshot: ports.Snapshot{Revision: 1}}
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		fresh := ports.Snapshot{Revision: 5, Orders: []*order.Order{newOrder(t, "o1", order.ManualAssigned, "", 1)}}
		store.push(fresh)
		require.Eventually(t, func() bool { return sub.Revision() == 5 }, waitFor, tick)
		delivered := rec.count()

		store.push(ports.Snapshot{Revision: 3})
		store.push(ports.Snapshot{Revision: 4})
		time.Sleep(50 * time.Millisecond)

		assert.Equal(t, delivered, rec.count())
		assert.Len(t, rec.last(), 1)
		assert.Equal(t, int64(5), sub.Revision())
	})

	t.Run("should never deliver a lower revision after a higher one", func(t *testing.T) {
		store := &fakeStore{snapshot: ports.Snapshot{Revision: 0}}
		r := newReconciler(t, store, nil)

		var (
			mu       sync.Mutex
			seen     []int
			inside   atomic.Int32
			overlaps atomic.Int32
		)
		sub, err := r.Subscribe(t.Context(), riderA, func(orders []*order.Order) {
			if inside.Add(1) > 1 {
				overlaps.Add(1)
			}
			defer inside.Add(-1)
			mu.Lock()
			seen = append(seen, len(orders))
			mu.Unlock()
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		offers := make([]*order.Order, 50)
		for j := range offers {
			offers[j] = newOrder(t, fmt.Sprintf("o%02d", j), order.ManualAssigned, "", int64(j+1))
		}

		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.push(ports.Snapshot{Revision: int64(i), Orders: offers[:i]})
			}()
		}
		wg.Wait()
		store.push(ports.Snapshot{Revision: 51, Orders: nil})

		require.Eventually(t, func() bool { return sub.Revision() == 51 }, waitFor, tick)

		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, overlaps.Load())
		require.NotEmpty(t, seen)
		for i := 1; i < len(seen)-1; i++ {
			assert.LessOrEqual(t, seen[i-1], seen[i], "visible list sizes track revisions")
		}
		assert.Equal(t, 0, seen[len(seen)-1])
	})
}

func TestSubscription_Mutate(t *testing.T) {
	accept := func(id kernel.ID) order.Patch {
		return order.NewAcceptPatch(order.Assignee{ID: id, Name: id.String()})
	}

	t.Run("should show the patch before returning and keep it after the store confirms", func(t *testing.T) {
		store := seededStore(t, newOrder(t, "o1", order.ManualAssigned, "", 1))
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		ack, err := sub.Mutate(o1, accept(riderA))

		require.NoError(t, err)
		require.GreaterOrEqual(t, rec.count(), 1)
		optimistic := find(rec.first(), o1)
		require.NotNil(t, optimistic)
		assert.Equal(t, order.Accepted, optimistic.Status())

		require.NoError(t, ack.Wait(t.Context()))
		assert.Equal(t, int64(2), ack.Revision())

		require.Eventually(t, func() bool { return sub.Revision() >= 2 }, waitFor, tick)
		current := find(sub.Orders(), o1)
		require.NotNil(t, current)
		assert.Equal(t, order.Accepted, current.Status())
		assert.True(t, current.IsAssignedTo(riderA))
	})

	t.Run("should write patches of one subscription in call order", func(t *testing.T) {
		store := seededStore(t, newOrder(t, "o1", order.Accepted, "rider-a", 1))
		r := newReconciler(t, store, nil)
		sub, err := r.Subscribe(t.Context(), riderA, func([]*order.Order) {})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		var acks []*reconciler.Ack
		steps := []order.Status{order.Accepted, order.OnTheWayToStore, order.ArrivedAtStore, order.PickingUpOrder}
		for i := 0; i < len(steps)-1; i++ {
			ack, err := sub.Mutate(o1, order.NewAdvancePatch(steps[i], steps[i+1], nil))
			require.NoError(t, err)
			acks = append(acks, ack)
		}

		for _, ack := range acks {
			require.NoError(t, ack.Wait(t.Context()))
		}
		stored, err := store.Get(t.Context(), o1)
		require.NoError(t, err)
		assert.Equal(t, order.PickingUpOrder, stored.Status())
	})

	t.Run("should refuse patches that do not apply locally without calling back", func(t *testing.T) {
		store := seededStore(t,
			newOrder(t, "o1", order.ManualAssigned, "", 1),
			newOrder(t, "theirs", order.Accepted, "rider-b", 2),
		)
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		_, err = sub.Mutate(kernel.MustIDFromString("theirs"), order.Patch{Status: order.OnTheWayToStore})
		require.ErrorIs(t, err, errs.ErrObjectNotFound)

		_, err = sub.Mutate(o1, order.NewAdvancePatch(order.Accepted, order.OnTheWayToStore, nil))
		require.ErrorIs(t, err, order.ErrIllegalTransition)

		assert.Equal(t, 0, rec.count())
		assert.Equal(t, int64(2), store.Revision())
	})

	t.Run("should roll back the overlay when the write fails", func(t *testing.T) {
		offer := newOrder(t, "o1", order.ManualAssigned, "", 1)
		store := &fakeStore{
			snapshot: ports.Snapshot{Revision: 1, Orders: []*order.Order{offer}},
			apply: func(kernel.ID, order.Patch) (int64, error) {
				return 0, errs.NewStoreUnavailableError("apply patch", errors.New("timeout"))
			},
		}
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		ack, err := sub.Mutate(o1, accept(riderA))
		require.NoError(t, err)

		require.ErrorIs(t, ack.Wait(t.Context()), errs.ErrStoreIsUnavailable)
		require.Eventually(t, func() bool {
			o := find(rec.last(), o1)
			return o != nil && o.Status() == order.ManualAssigned
		}, waitFor, tick)
	})

	t.Run("should re-fetch after the delay even without a push", func(t *testing.T) {
		offer := newOrder(t, "o1", order.ManualAssigned, "", 1)
		store := &fakeStore{
			snapshot: ports.Snapshot{Revision: 1, Orders: []*order.Order{offer}},
			apply:    func(kernel.ID, order.Patch) (int64, error) { return 2, nil },
		}
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		accepted := offer.Clone()
		require.NoError(t, accepted.Apply(accept(riderA)))
		require.NoError(t, accepted.SetRevision(2))
		store.setFetch(ports.Snapshot{Revision: 2, Orders: []*order.Order{accepted}}, nil)

		_, err = sub.Mutate(o1, accept(riderA))
		require.NoError(t, err)
		assert.Equal(t, 1, rec.count())

		require.Eventually(t, func() bool { return rec.count() == 2 && sub.Revision() == 2 }, waitFor, tick)
		assert.True(t, find(rec.last(), o1).IsAssignedTo(riderA))
	})

	t.Run("should keep the optimistic view when the re-fetch fails", func(t *testing.T) {
		offer := newOrder(t, "o1", order.ManualAssigned, "", 1)
		store := &fakeStore{
			snapshot: ports.Snapshot{Revision: 1, Orders: []*order.Order{offer}},
			apply:    func(kernel.ID, order.Patch) (int64, error) { return 2, nil },
		}
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)
		defer sub.Unsubscribe()
		store.setFetch(ports.Snapshot{}, errors.New("network down"))
		before := testutil.ToFloat64(metrics.RefetchFailuresTotal)

		ack, err := sub.Mutate(o1, accept(riderA))
		require.NoError(t, err)
		require.NoError(t, ack.Wait(t.Context()))

		require.Eventually(t, func() bool {
			return testutil.ToFloat64(metrics.RefetchFailuresTotal) >= before+1
		}, waitFor, tick)
		assert.Equal(t, 1, rec.count())
		assert.Equal(t, order.Accepted, find(sub.Orders(), o1).Status())
	})

	t.Run("should publish accepted writes", func(t *testing.T) {
		store := seededStore(t, newOrder(t, "o1", order.ManualAssigned, "", 1))
		publisher := &mockPublisher{}
		published := make(chan ports.OrderChangedEvent, 1)
		publisher.On("PublishOrderChanged", mock.Anything, mock.AnythingOfType("ports.OrderChangedEvent")).
			Run(func(args mock.Arguments) { published <- args.Get(1).(ports.OrderChangedEvent) }).
			Return(nil).Once()
		r := newReconciler(t, store, publisher)
		sub, err := r.Subscribe(t.Context(), riderA, func([]*order.Order) {})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		_, err = sub.Mutate(o1, accept(riderA))
		require.NoError(t, err)

		select {
		case event := <-published:
			assert.Equal(t, "o1", event.OrderID)
			assert.Equal(t, "ACCEPTED", event.Status)
			assert.Equal(t, "rider-a", event.CourierID)
			assert.Equal(t, int64(2), event.Revision)
		case <-time.After(waitFor):
			t.Fatal("event was not published")
		}
		publisher.AssertExpectations(t)
	})
}

func TestSubscription_AcceptRace(t *testing.T) {
	t.Run("should let one courier win and correct the loser", func(t *testing.T) {
		store := &gatedStore{
			OrderStore: seededStore(t, newOrder(t, "o1", order.ManualAssigned, "", 1)),
			gate:       make(chan struct{}),
		}
		r := newReconciler(t, store, nil)

		recA, recB := &recorder{}, &recorder{}
		subA, err := r.Subscribe(t.Context(), riderA, recA.onUpdate)
		require.NoError(t, err)
		defer subA.Unsubscribe()
		subB, err := r.Subscribe(t.Context(), riderB, recB.onUpdate)
		require.NoError(t, err)
		defer subB.Unsubscribe()

		ackA, err := subA.Mutate(o1, order.NewAcceptPatch(order.Assignee{ID: riderA}))
		require.NoError(t, err)
		ackB, err := subB.Mutate(o1, order.NewAcceptPatch(order.Assignee{ID: riderB}))
		require.NoError(t, err)

		assert.True(t, find(recA.last(), o1).IsAssignedTo(riderA))
		assert.True(t, find(recB.last(), o1).IsAssignedTo(riderB))

		close(store.gate)
		errA := ackA.Wait(t.Context())
		errB := ackB.Wait(t.Context())

		require.True(t, (errA == nil) != (errB == nil), "exactly one claim must win: %v / %v", errA, errB)

		winner, loser, loserErr := riderA, subB, errB
		if errA != nil {
			winner, loser, loserErr = riderB, subA, errA
		}
		require.ErrorIs(t, loserErr, order.ErrNotAvailable)

		require.Eventually(t, func() bool { return find(loser.Orders(), o1) == nil }, waitFor, tick)

		stored, err := store.Get(t.Context(), o1)
		require.NoError(t, err)
		assert.True(t, stored.IsAssignedTo(winner))
	})
}

func TestSubscription_Unsubscribe(t *testing.T) {
	t.Run("should be idempotent and stop deliveries", func(t *testing.T) {
		store := &fakeStore{snapshot: ports.Snapshot{Revision: 1}}
		r := newReconciler(t, store, nil)
		rec := &recorder{}
		sub, err := r.Subscribe(t.Context(), riderA, rec.onUpdate)
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			sub.Unsubscribe()
			sub.Unsubscribe()
		})
		store.push(ports.Snapshot{Revision: 2, Orders: []*order.Order{newOrder(t, "o1", order.ManualAssigned, "", 1)}})
		time.Sleep(30 * time.Millisecond)

		assert.Equal(t, 0, rec.count())
		store.mu.Lock()
		assert.Equal(t, 1, store.unsubscribes)
		store.mu.Unlock()
		_, err = sub.Mutate(o1, order.Patch{Status: order.Cancelled})
		require.ErrorIs(t, err, reconciler.ErrSubscriptionClosed)

		select {
		case <-sub.Done():
		default:
			t.Fatal("Done must be closed")
		}
	})

	t.Run("should be safe from inside onUpdate", func(t *testing.T) {
		store := &fakeStore{snapshot: ports.Snapshot{Revision: 1}}
		r := newReconciler(t, store, nil)
		var sub *reconciler.Subscription
		called := make(chan struct{}, 1)
		sub, err := r.Subscribe(t.Context(), riderA, func([]*order.Order) {
			sub.Unsubscribe()
			called <- struct{}{}
		})
		require.NoError(t, err)

		store.push(ports.Snapshot{Revision: 2})

		select {
		case <-called:
		case <-time.After(waitFor):
			t.Fatal("onUpdate was not called")
		}
		<-sub.Done()
	})

	t.Run("should stop pending re-fetch timers", func(t *testing.T) {
		offer := newOrder(t, "o1", order.ManualAssigned, "", 1)
		store := &fakeStore{
			snapshot: ports.Snapshot{Revision: 1, Orders: []*order.Order{offer}},
			apply:    func(kernel.ID, order.Patch) (int64, error) { return 2, nil },
		}
		r := newReconciler(t, store, nil)
		sub, err := r.Subscribe(t.Context(), riderA, func([]*order.Order) {})
		require.NoError(t, err)

		ack, err := sub.Mutate(o1, order.NewAcceptPatch(order.Assignee{ID: riderA}))
		require.NoError(t, err)
		sub.Unsubscribe()
		require.NoError(t, ack.Wait(t.Context()), "in-flight writes complete after teardown")

		time.Sleep(3 * refetchDelay)
		store.mu.Lock()
		defer store.mu.Unlock()
		assert.Equal(t, 1, store.fetches)
	})

	t.Run("should terminate every feed of a courier", func(t *testing.T) {
		store := seededStore(t)
		r := newReconciler(t, store, nil)
		first, err := r.Subscribe(t.Context(), riderA, func([]*order.Order) {})
		require.NoError(t, err)
		second, err := r.Subscribe(t.Context(), riderA, func([]*order.Order) {})
		require.NoError(t, err)
		other, err := r.Subscribe(t.Context(), riderB, func([]*order.Order) {})
		require.NoError(t, err)
		defer other.Unsubscribe()

		assert.Equal(t, 2, r.UnsubscribeCourier(riderA))
		assert.Equal(t, 0, r.UnsubscribeCourier(riderA))

		<-first.Done()
		<-second.Done()
		select {
		case <-other.Done():
			t.Fatal("other courier's feed must stay open")
		default:
		}
	})
}
