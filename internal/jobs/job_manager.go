package jobs

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// JobManager starts per-courier validity monitors and stops whatever is
// still running on shutdown.
type JobManager struct {
	gateway  ports.AuthGateway
	feeds    FeedTerminator
	markers  ports.SessionMarkerStore
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	jobs map[*SessionValidityJob]struct{}
}

// NewJobManager creates a job manager. A non-positive interval selects
// DefaultValidityInterval.
func NewJobManager(
	gateway ports.AuthGateway,
	feeds FeedTerminator,
	markers ports.SessionMarkerStore,
	interval time.Duration,
	logger *slog.Logger,
) (*JobManager, error) {
	if gateway == nil {
		return nil, errs.NewValueIsRequiredError("gateway")
	}
	if feeds == nil {
		return nil, errs.NewValueIsRequiredError("feeds")
	}
	if markers == nil {
		return nil, errs.NewValueIsRequiredError("markers")
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}

	return &JobManager{
		gateway:  gateway,
		feeds:    feeds,
		markers:  markers,
		interval: interval,
		logger:   logger,
		jobs:     make(map[*SessionValidityJob]struct{}),
	}, nil
}

// StartValidityMonitor starts checking courierID's approval. The returned
// stop func is idempotent.
func (jm *JobManager) StartValidityMonitor(courierID kernel.ID, onInvalid func()) (func(), error) {
	if err := courierID.Validate(); err != nil {
		return nil, err
	}

	job := NewSessionValidityJob(courierID, jm.gateway, jm.feeds, jm.markers, jm.interval, onInvalid, jm.logger)

	jm.mu.Lock()
	jm.jobs[job] = struct{}{}
	jm.mu.Unlock()

	if err := job.Start(); err != nil {
		jm.forget(job)
		return nil, fmt.Errorf("failed to start session validity job: %w", err)
	}

	return func() {
		job.Stop()
		jm.forget(job)
	}, nil
}

// StopAll stops every running monitor.
func (jm *JobManager) StopAll() {
	jm.mu.Lock()
	jobs := make([]*SessionValidityJob, 0, len(jm.jobs))
	for job := range jm.jobs {
		jobs = append(jobs, job)
	}
	clear(jm.jobs)
	jm.mu.Unlock()

	for _, job := range jobs {
		job.Stop()
	}
}

func (jm *JobManager) forget(job *SessionValidityJob) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.jobs, job)
}
