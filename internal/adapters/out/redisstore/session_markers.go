package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/go-redis/redis/v8"
)

// DefaultSessionTTL bounds how long a marker outlives a crashed process.
const DefaultSessionTTL = 24 * time.Hour

var _ ports.SessionMarkerStore = (*SessionMarkers)(nil)

type sessionMarker struct {
	CourierID string    `json:"courier_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionMarkers struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionMarkers(client *redis.Client, ttl time.Duration) *SessionMarkers {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionMarkers{client: client, ttl: ttl}
}

func (m *SessionMarkers) Save(ctx context.Context, courierID kernel.ID) error {
	if err := courierID.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(sessionMarker{
		CourierID: courierID.String(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err = m.client.Set(ctx, sessionPrefix+courierID.String(), data, m.ttl).Err(); err != nil {
		return errs.NewStoreUnavailableError("save session marker", err)
	}
	return nil
}

func (m *SessionMarkers) Exists(ctx context.Context, courierID kernel.ID) (bool, error) {
	n, err := m.client.Exists(ctx, sessionPrefix+courierID.String()).Result()
	if err != nil {
		return false, errs.NewStoreUnavailableError("check session marker", err)
	}
	return n > 0, nil
}

// Clear is idempotent.
func (m *SessionMarkers) Clear(ctx context.Context, courierID kernel.ID) error {
	if err := m.client.Del(ctx, sessionPrefix+courierID.String()).Err(); err != nil {
		return errs.NewStoreUnavailableError("clear session marker", err)
	}
	return nil
}
