package redisstore

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/go-redis/redis/v8"
)

var _ ports.PresenceSink = (*PresenceSink)(nil)

type PresenceSink struct {
	client *redis.Client
	now    func() time.Time
}

func NewPresenceSink(client *redis.Client) *PresenceSink {
	return &PresenceSink{client: client, now: time.Now}
}

func (p *PresenceSink) Report(ctx context.Context, courierID kernel.ID, online, active bool) error {
	if err := courierID.Validate(); err != nil {
		return err
	}

	err := p.client.HSet(ctx, presencePrefix+courierID.String(),
		"online", online,
		"active", active,
		"lastSeen", p.now().UnixMilli(),
	).Err()
	if err != nil {
		return errs.NewStoreUnavailableError("report presence", err)
	}
	return nil
}

// Get reads the last report back. Couriers that never reported get
// errs.ObjectNotFoundError.
func (p *PresenceSink) Get(ctx context.Context, courierID kernel.ID) (courier.Presence, error) {
	var stored struct {
		Online   bool  `redis:"online"`
		Active   bool  `redis:"active"`
		LastSeen int64 `redis:"lastSeen"`
	}

	cmd := p.client.HGetAll(ctx, presencePrefix+courierID.String())
	if err := cmd.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return courier.Presence{}, errs.NewStoreUnavailableError("get presence", err)
	}
	if len(cmd.Val()) == 0 {
		return courier.Presence{}, errs.NewObjectNotFoundError("presence", courierID.String())
	}
	if err := cmd.Scan(&stored); err != nil {
		return courier.Presence{}, errs.NewValueIsInvalidErrorWithCause("presence", err)
	}

	return courier.Presence{
		Online:   stored.Online,
		Active:   stored.Active,
		LastSeen: stored.LastSeen,
	}, nil
}
