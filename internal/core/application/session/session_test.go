package session_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dispatch/internal/adapters/out/memory"
	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/application/session"
	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/jobs"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validityInterval = 50 * time.Millisecond
	waitFor          = 2 * time.Second
	tick             = 5 * time.Millisecond
)

var riderID = kernel.MustIDFromString("rider-1")

type env struct {
	store     *memory.OrderStore
	directory *memory.CourierDirectory
	presence  *memory.PresenceSink
	markers   *memory.SessionMarkers
	jobs      *jobs.JobManager
	manager   *session.Manager
}

func newEnv(t *testing.T, store ports.OrderStore) *env {
	t.Helper()
	return newEnvWithGateway(t, store, nil)
}

// newEnvWithGateway checks approval against gateway instead of the
// directory when gateway is not nil.
func newEnvWithGateway(t *testing.T, store ports.OrderStore, gateway ports.AuthGateway) *env {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	e := &env{
		store:     memory.NewOrderStore(),
		directory: memory.NewCourierDirectory(),
		presence:  memory.NewPresenceSink(),
		markers:   memory.NewSessionMarkers(),
	}
	if store == nil {
		store = e.store
	}

	r, err := reconciler.New(store, nil, 20*time.Millisecond, logger)
	require.NoError(t, err)
	if gateway == nil {
		gateway = e.directory
	}
	e.jobs, err = jobs.NewJobManager(gateway, r, e.markers, validityInterval, logger)
	require.NoError(t, err)
	e.manager, err = session.NewManager(e.directory, e.presence, e.markers, r, e.jobs, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		e.manager.CloseAll(context.Background())
		e.jobs.StopAll()
	})
	return e
}

func (e *env) addCourier(t *testing.T, id kernel.ID, approved bool) {
	t.Helper()
	c, err := courier.RestoreCourier(id, "Rider "+id.String(), approved, courier.Presence{})
	require.NoError(t, err)
	require.NoError(t, e.directory.Add(t.Context(), c))
}

func (e *env) addOrder(t *testing.T, id string, status order.Status, assignee string, createdAt int64) {
	t.Helper()
	p := order.Params{
		ID:               kernel.MustIDFromString(id),
		DeliveryFee:      kernel.MustMoney("4.50"),
		ConfirmationCode: "1357",
		Status:           status,
		CreatedAt:        createdAt,
	}
	if assignee != "" {
		p.AssignedCourierID = kernel.MustIDFromString(assignee)
		p.AssignedCourierName = assignee
	}
	if status == order.Delivered {
		deliveredAt := createdAt + 60_000
		p.DeliveredAt = &deliveredAt
	}
	o, err := order.RestoreOrder(p)
	require.NoError(t, err)
	_, err = e.store.Add(t.Context(), o)
	require.NoError(t, err)
}

// withdrawingGateway blocks the first approval check until release is
// closed and then reports the courier as no longer approved.
type withdrawingGateway struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newWithdrawingGateway() *withdrawingGateway {
	return &withdrawingGateway{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *withdrawingGateway) IsApproved(context.Context, kernel.ID) (bool, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return false, nil
}

type failingStore struct {
	*memory.OrderStore
}

func (failingStore) FetchAll(context.Context) (ports.Snapshot, error) {
	return ports.Snapshot{}, errors.New("connection reset")
}

func TestNewManager(t *testing.T) {
	t.Run("should require collaborators", func(t *testing.T) {
		_, err := session.NewManager(nil, nil, nil, nil, nil, nil)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
	})
}

func TestManager_Open(t *testing.T) {
	t.Run("should open a feed with the visible orders, the marker and presence", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		e.addOrder(t, "offer", order.ManualAssigned, "", 100)
		e.addOrder(t, "mine", order.Accepted, "rider-1", 200)
		e.addOrder(t, "other", order.Accepted, "rider-2", 300)

		s, err := e.manager.Open(t.Context(), riderID)

		require.NoError(t, err)
		initial := s.InitialOrders()
		require.Len(t, initial, 2)
		assert.Equal(t, "mine", initial[0].ID().String())
		assert.Equal(t, "offer", initial[1].ID().String())

		exists, err := e.markers.Exists(t.Context(), riderID)
		require.NoError(t, err)
		assert.True(t, exists)

		presence, ok := e.presence.Last(riderID)
		require.True(t, ok)
		assert.True(t, presence.Online)
		assert.True(t, presence.Active)

		got, err := e.manager.Get(t.Context(), riderID)
		require.NoError(t, err)
		assert.Same(t, s, got)
	})

	t.Run("should fail for unknown couriers", func(t *testing.T) {
		e := newEnv(t, nil)

		_, err := e.manager.Open(t.Context(), riderID)

		require.ErrorIs(t, err, errs.ErrObjectNotFound)
	})

	t.Run("should refuse unapproved couriers", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, false)

		_, err := e.manager.Open(t.Context(), riderID)

		require.ErrorIs(t, err, courier.ErrCourierIsNotApproved)
		exists, _ := e.markers.Exists(t.Context(), riderID)
		assert.False(t, exists)
	})

	t.Run("should clear the marker when the store is unavailable", func(t *testing.T) {
		e := newEnv(t, failingStore{memory.NewOrderStore()})
		e.addCourier(t, riderID, true)

		_, err := e.manager.Open(t.Context(), riderID)

		require.ErrorIs(t, err, errs.ErrStoreIsUnavailable)
		exists, _ := e.markers.Exists(t.Context(), riderID)
		assert.False(t, exists)
		_, err = e.manager.Get(t.Context(), riderID)
		require.ErrorIs(t, err, errs.ErrObjectNotFound)
	})

	t.Run("should replace an open session", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)

		first, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)
		second, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)

		<-first.Done()
		got, err := e.manager.Get(t.Context(), riderID)
		require.NoError(t, err)
		assert.Same(t, second, got)
		exists, _ := e.markers.Exists(t.Context(), riderID)
		assert.True(t, exists)
	})
}

func TestManager_Open_Concurrent(t *testing.T) {
	t.Run("should keep exactly one session when a courier opens twice at once", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)

		var wg sync.WaitGroup
		opened := make([]*session.Session, 2)
		for i := range opened {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := e.manager.Open(context.Background(), riderID)
				assert.NoError(t, err)
				opened[i] = s
			}()
		}
		wg.Wait()

		current, err := e.manager.Get(t.Context(), riderID)
		require.NoError(t, err)
		live := 0
		for _, s := range opened {
			require.NotNil(t, s)
			select {
			case <-s.Done():
			default:
				live++
				assert.Same(t, current, s)
			}
		}
		assert.Equal(t, 1, live)
	})
}

func TestManager_Get(t *testing.T) {
	t.Run("should close the session once its marker is gone", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)

		require.NoError(t, e.markers.Clear(t.Context(), riderID))
		_, err = e.manager.Get(t.Context(), riderID)

		require.ErrorIs(t, err, errs.ErrObjectNotFound)
		select {
		case <-s.Done():
		case <-time.After(waitFor):
			t.Fatal("session was not closed")
		}
		presence, _ := e.presence.Last(riderID)
		assert.False(t, presence.Online)
	})
}

func TestSession_Watch(t *testing.T) {
	t.Run("should deliver the newest list after store changes", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)
		updates, cancel := s.Watch()
		defer cancel()

		e.addOrder(t, "offer", order.ManualAssigned, "", 100)

		select {
		case orders := <-updates:
			require.Len(t, orders, 1)
			assert.Equal(t, "offer", orders[0].ID().String())
		case <-time.After(waitFor):
			t.Fatal("no update")
		}
	})

	t.Run("should close watchers when the session ends", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)
		updates, cancel := s.Watch()
		defer cancel()

		s.Close(t.Context())

		_, open := <-updates
		assert.False(t, open)

		late, _ := s.Watch()
		_, open = <-late
		assert.False(t, open)
	})
}

func TestSession_Mutate(t *testing.T) {
	t.Run("should apply a claim to the local view and the store", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		e.addOrder(t, "offer", order.ManualAssigned, "", 100)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)
		offerID := kernel.MustIDFromString("offer")

		ack, err := s.Mutate(offerID, order.NewAcceptPatch(order.Assignee{ID: riderID, Name: "Rider"}))
		require.NoError(t, err)

		local, err := s.Order(offerID)
		require.NoError(t, err)
		assert.Equal(t, order.Accepted, local.Status())
		require.NoError(t, ack.Wait(t.Context()))

		stored, err := e.store.Get(t.Context(), offerID)
		require.NoError(t, err)
		assert.True(t, stored.IsAssignedTo(riderID))
	})

	t.Run("should report orders outside the view as not found", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)

		_, err = s.Order(kernel.MustIDFromString("missing"))

		require.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
}

func TestSession_Earnings(t *testing.T) {
	t.Run("should sum delivered orders of the courier", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		now := time.Date(2026, time.March, 11, 15, 0, 0, 0, time.UTC)
		e.addOrder(t, "today", order.Delivered, "rider-1", now.Add(-2*time.Hour).UnixMilli())
		e.addOrder(t, "earlier", order.Delivered, "rider-1", now.AddDate(0, 0, -1).UnixMilli())
		e.addOrder(t, "other", order.Delivered, "rider-2", now.Add(-time.Hour).UnixMilli())
		e.addOrder(t, "open", order.Accepted, "rider-1", now.Add(-time.Hour).UnixMilli())
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)

		window := s.Earnings(now)

		assert.Equal(t, "4.50", window.Daily.String())
		assert.Equal(t, "9.00", window.Weekly.String())
		assert.Equal(t, "9.00", window.Monthly.String())
		assert.Equal(t, 1, window.DailyOrderCount)
	})
}

func TestSession_Close(t *testing.T) {
	t.Run("should stop the feed, clear the marker and report offline", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)

		require.NoError(t, e.manager.Close(t.Context(), riderID))
		s.Close(t.Context())

		<-s.Done()
		assert.False(t, s.Revoked())
		exists, _ := e.markers.Exists(t.Context(), riderID)
		assert.False(t, exists)
		presence, _ := e.presence.Last(riderID)
		assert.False(t, presence.Online)
		assert.False(t, presence.Active)

		_, err = s.Mutate(kernel.MustIDFromString("any"), order.Patch{Status: order.Cancelled})
		require.ErrorIs(t, err, reconciler.ErrSubscriptionClosed)
		require.ErrorIs(t, e.manager.Close(t.Context(), riderID), errs.ErrObjectNotFound)
	})
}

func TestSession_Revocation(t *testing.T) {
	t.Run("should end the session once the courier loses approval", func(t *testing.T) {
		e := newEnv(t, nil)
		e.addCourier(t, riderID, true)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)

		time.Sleep(2 * validityInterval)
		select {
		case <-s.Done():
			t.Fatal("approved session must stay open")
		default:
		}

		require.NoError(t, e.directory.SetApproved(riderID, false))

		select {
		case <-s.Done():
		case <-time.After(waitFor):
			t.Fatal("session was not revoked")
		}
		assert.True(t, s.Revoked())
		exists, _ := e.markers.Exists(t.Context(), riderID)
		assert.False(t, exists)
		require.Eventually(t, func() bool {
			_, err := e.manager.Get(t.Context(), riderID)
			return errors.Is(err, errs.ErrObjectNotFound)
		}, waitFor, tick)
	})
}

func TestSession_CloseDuringRevocation(t *testing.T) {
	t.Run("should return when closed while a check is withdrawing approval", func(t *testing.T) {
		gateway := newWithdrawingGateway()
		e := newEnvWithGateway(t, nil, gateway)
		e.addCourier(t, riderID, true)
		s, err := e.manager.Open(t.Context(), riderID)
		require.NoError(t, err)

		select {
		case <-gateway.entered:
		case <-time.After(waitFor):
			t.Fatal("approval was never checked")
		}

		closed := make(chan struct{})
		go func() {
			s.Close(context.Background())
			close(closed)
		}()
		time.Sleep(2 * tick)
		close(gateway.release)

		select {
		case <-closed:
		case <-time.After(waitFor):
			t.Fatal("Close did not return")
		}
		<-s.Done()
		exists, _ := e.markers.Exists(t.Context(), riderID)
		assert.False(t, exists)
		_, err = e.manager.Get(t.Context(), riderID)
		require.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
}
