package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// ValidityMonitor starts the periodic approval check of a courier.
type ValidityMonitor interface {
	StartValidityMonitor(courierID kernel.ID, onInvalid func()) (func(), error)
}

// Manager keeps at most one open Session per courier.
type Manager struct {
	couriers   ports.CourierRepository
	presence   ports.PresenceSink
	markers    ports.SessionMarkerStore
	reconciler *reconciler.Reconciler
	monitor    ValidityMonitor
	earnings   services.EarningsAggregator
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*courierLock
}

type courierLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(
	couriers ports.CourierRepository,
	presence ports.PresenceSink,
	markers ports.SessionMarkerStore,
	reconciler *reconciler.Reconciler,
	monitor ValidityMonitor,
	logger *slog.Logger,
) (*Manager, error) {
	if couriers == nil {
		return nil, errs.NewValueIsRequiredError("couriers")
	}
	if presence == nil {
		return nil, errs.NewValueIsRequiredError("presence")
	}
	if markers == nil {
		return nil, errs.NewValueIsRequiredError("markers")
	}
	if reconciler == nil {
		return nil, errs.NewValueIsRequiredError("reconciler")
	}
	if monitor == nil {
		return nil, errs.NewValueIsRequiredError("monitor")
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}

	return &Manager{
		couriers:   couriers,
		presence:   presence,
		markers:    markers,
		reconciler: reconciler,
		monitor:    monitor,
		earnings:   services.NewEarningsAggregator(),
		logger:     logger.With("component", "session_manager"),
		sessions:   make(map[string]*Session),
		locks:      make(map[string]*courierLock),
	}, nil
}

// Open starts a session for courierID, replacing an open one. Unknown
// couriers get errs.ObjectNotFoundError, unapproved ones
// courier.ErrCourierIsNotApproved.
func (m *Manager) Open(ctx context.Context, courierID kernel.ID) (*Session, error) {
	if err := courierID.Validate(); err != nil {
		return nil, err
	}

	unlock := m.lockCourier(courierID)
	defer unlock()

	c, err := m.couriers.Get(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if err := c.CanOpenSession(); err != nil {
		return nil, err
	}

	if previous, ok := m.lookup(courierID); ok {
		previous.Close(ctx)
	}

	if err := m.markers.Save(ctx, courierID); err != nil {
		return nil, errs.NewStoreUnavailableError("save session marker", err)
	}

	s := newSession(m, c)

	sub, err := m.reconciler.Subscribe(ctx, courierID, s.broadcast)
	if err != nil {
		m.clearMarker(ctx, courierID)
		return nil, err
	}
	s.sub = sub

	// Registered before the monitor starts so a revocation always finds it.
	m.mu.Lock()
	m.sessions[courierID.String()] = s
	m.mu.Unlock()

	stop, err := m.monitor.StartValidityMonitor(courierID, s.revoke)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.setStopMonitor(stop)

	m.report(ctx, courierID, true, true)
	s.logger.InfoContext(ctx, "Session opened", "orders", len(sub.InitialOrders()))

	return s, nil
}

// Get returns the open session of courierID or errs.ObjectNotFoundError.
// A session whose marker is gone, expired or cleared elsewhere, is closed
// and reported as not found. Marker store errors keep the session.
func (m *Manager) Get(ctx context.Context, courierID kernel.ID) (*Session, error) {
	s, ok := m.lookup(courierID)
	if !ok {
		return nil, errs.NewObjectNotFoundError("session", courierID.String())
	}

	exists, err := m.markers.Exists(ctx, courierID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read session marker, keeping session", "error", err)
		return s, nil
	}
	if !exists {
		s.logger.InfoContext(ctx, "Session marker is gone, closing session")
		s.Close(ctx)
		return nil, errs.NewObjectNotFoundError("session", courierID.String())
	}

	return s, nil
}

// Close ends the open session of courierID.
func (m *Manager) Close(ctx context.Context, courierID kernel.ID) error {
	unlock := m.lockCourier(courierID)
	defer unlock()

	s, ok := m.lookup(courierID)
	if !ok {
		return errs.NewObjectNotFoundError("session", courierID.String())
	}
	s.Close(ctx)
	return nil
}

func (m *Manager) lookup(courierID kernel.ID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[courierID.String()]
	return s, ok
}

// lockCourier serializes Open and Close per courier. Entries are dropped
// once no caller holds or waits for them.
func (m *Manager) lockCourier(courierID kernel.ID) func() {
	key := courierID.String()

	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &courierLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// CloseAll ends every open session.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.courier.ID().String()
	if m.sessions[key] == s {
		delete(m.sessions, key)
	}
}

func (m *Manager) clearMarker(ctx context.Context, courierID kernel.ID) {
	if err := m.markers.Clear(ctx, courierID); err != nil {
		m.logger.ErrorContext(ctx, "Failed to clear session marker", "courier_id", courierID.String(), "error", err)
	}
}

// report is fire-and-forget: presence never fails a session operation.
func (m *Manager) report(ctx context.Context, courierID kernel.ID, online, active bool) {
	if err := m.presence.Report(ctx, courierID, online, active); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.WarnContext(ctx, "Failed to report presence",
			"courier_id", courierID.String(), "online", online, "error", err)
	}
}
