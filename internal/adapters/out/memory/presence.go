package memory

import (
	"context"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
)

var (
	_ ports.PresenceSink       = (*PresenceSink)(nil)
	_ ports.SessionMarkerStore = (*SessionMarkers)(nil)
)

// PresenceSink remembers the last report per courier.
type PresenceSink struct {
	mu      sync.Mutex
	reports map[string]courier.Presence
}

func NewPresenceSink() *PresenceSink {
	return &PresenceSink{reports: make(map[string]courier.Presence)}
}

func (p *PresenceSink) Report(_ context.Context, courierID kernel.ID, online, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reports[courierID.String()] = courier.Presence{
		Online:   online,
		Active:   active,
		LastSeen: time.Now().UnixMilli(),
	}
	return nil
}

// Last returns the last report for courierID.
func (p *PresenceSink) Last(courierID kernel.ID) (courier.Presence, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	presence, ok := p.reports[courierID.String()]
	return presence, ok
}

// SessionMarkers is a set of signed-in courier ids.
type SessionMarkers struct {
	mu      sync.Mutex
	markers map[string]struct{}
}

func NewSessionMarkers() *SessionMarkers {
	return &SessionMarkers{markers: make(map[string]struct{})}
}

func (m *SessionMarkers) Save(_ context.Context, courierID kernel.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[courierID.String()] = struct{}{}
	return nil
}

func (m *SessionMarkers) Exists(_ context.Context, courierID kernel.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[courierID.String()]
	return ok, nil
}

func (m *SessionMarkers) Clear(_ context.Context, courierID kernel.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, courierID.String())
	return nil
}
