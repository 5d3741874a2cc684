package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/metrics"

	"github.com/robfig/cron/v3"
)

// DefaultValidityInterval is how often a courier's approval is re-checked.
const DefaultValidityInterval = 30 * time.Second

// FeedTerminator closes every order feed of a courier.
type FeedTerminator interface {
	UnsubscribeCourier(courierID kernel.ID) int
}

// SessionValidityJob polls the auth gateway for one courier and revokes the
// session when the courier is no longer approved.
type SessionValidityJob struct {
	courierID kernel.ID
	gateway   ports.AuthGateway
	feeds     FeedTerminator
	markers   ports.SessionMarkerStore
	onInvalid func()
	interval  time.Duration
	cron      *cron.Cron
	logger    *slog.Logger

	stopOnce sync.Once
	// stopped receives the cron stop context so Stop can wait for a
	// running check.
	stopped context.Context
}

// NewSessionValidityJob creates a monitor for courierID. onInvalid may be nil.
func NewSessionValidityJob(
	courierID kernel.ID,
	gateway ports.AuthGateway,
	feeds FeedTerminator,
	markers ports.SessionMarkerStore,
	interval time.Duration,
	onInvalid func(),
	logger *slog.Logger,
) *SessionValidityJob {
	if interval <= 0 {
		interval = DefaultValidityInterval
	}
	logger = logger.With("component", "session_validity_job", "courier_id", courierID.String())

	return &SessionValidityJob{
		courierID: courierID,
		gateway:   gateway,
		feeds:     feeds,
		markers:   markers,
		onInvalid: onInvalid,
		interval:  interval,
		cron: cron.New(
			cron.WithLogger(cronLogger{logger: logger}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})),
		),
		logger: logger,
	}
}

// Start schedules the first check one interval from now.
func (j *SessionValidityJob) Start() error {
	j.cron.Schedule(intervalSchedule(j.interval), cron.FuncJob(j.check))
	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Session validity job started", "interval", j.interval)
	return nil
}

// Stop cancels future checks and waits for a running one. It is idempotent
// and may be called from onInvalid.
func (j *SessionValidityJob) Stop() {
	first := false
	j.stopOnce.Do(func() {
		first = true
		j.stopped = j.cron.Stop()
	})
	if !first {
		return
	}
	<-j.stopped.Done()
	j.logger.InfoContext(context.Background(), "Session validity job stopped")
}

func (j *SessionValidityJob) check() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	started := time.Now()
	approved, err := j.gateway.IsApproved(ctx, j.courierID)
	metrics.ValidityCheckDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		j.logger.WarnContext(ctx, "Approval check failed, keeping session", "error", err)
		return
	}
	if approved {
		return
	}

	j.revoke(ctx)
}

func (j *SessionValidityJob) revoke(ctx context.Context) {
	// Halt the scheduler without waiting: this runs inside the cron job.
	j.stopOnce.Do(func() {
		j.stopped = j.cron.Stop()
	})

	closed := j.feeds.UnsubscribeCourier(j.courierID)
	if err := j.markers.Clear(ctx, j.courierID); err != nil {
		j.logger.ErrorContext(ctx, "Failed to clear session marker", "error", err)
	}
	metrics.SessionsRevokedTotal.Inc()
	j.logger.InfoContext(ctx, "Courier is no longer approved, session revoked", "feeds_closed", closed)

	if j.onInvalid != nil {
		j.onInvalid()
	}
}
