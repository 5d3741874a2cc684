package orderrepo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	minReconnectInterval = 10 * time.Millisecond
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ChangeFeed listens on the orders channel and hands a fresh snapshot to
// every subscriber after each burst of notifications. Snapshots are read and
// delivered by the Run goroutine only, so subscribers see them in revision
// order.
type ChangeFeed struct {
	db      *gorm.DB
	dsn     string
	channel string
	logger  *slog.Logger

	mu       sync.Mutex
	handlers map[uint64]ports.SnapshotHandler
	nextID   uint64
}

// NewChangeFeed creates a feed. dsn must be a lib/pq connection string for
// the database db points to.
func NewChangeFeed(db *gorm.DB, dsn, channel string, logger *slog.Logger) *ChangeFeed {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &ChangeFeed{
		db:       db,
		dsn:      dsn,
		channel:  channel,
		logger:   logger.With("component", "order_change_feed", "channel", channel),
		handlers: make(map[uint64]ports.SnapshotHandler),
	}
}

// Subscribe registers onSnapshot until the returned func is called or ctx
// ends.
func (f *ChangeFeed) Subscribe(ctx context.Context, onSnapshot ports.SnapshotHandler) (func(), error) {
	if onSnapshot == nil {
		return nil, errs.NewValueIsRequiredError("onSnapshot")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.NewStoreUnavailableError("subscribe all", err)
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.handlers[id] = onSnapshot
	f.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.handlers, id)
			f.mu.Unlock()
		})
	}

	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}

// Run listens until ctx ends. Connection losses are retried by the listener;
// after a reconnect a snapshot is pushed since notifications may have been
// missed.
func (f *ChangeFeed) Run(ctx context.Context) error {
	listener := pq.NewListener(f.dsn, minReconnectInterval, maxReconnectInterval, f.onEvent)
	defer listener.Close()

	if err := listener.Listen(f.channel); err != nil {
		return errs.NewStoreUnavailableError("listen "+f.channel, err)
	}
	f.logger.InfoContext(ctx, "Order change feed started")

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.InfoContext(ctx, "Order change feed stopped")
			return nil
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				f.logger.WarnContext(ctx, "Listener ping failed", "error", err)
			}
		case <-listener.Notify:
			drain(listener.Notify)
			f.broadcast(ctx)
		}
	}
}

func (f *ChangeFeed) onEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		f.logger.Warn("Order change feed connection lost", "error", err)
	case pq.ListenerEventReconnected:
		f.logger.Info("Order change feed reconnected")
	}
}

// drain coalesces notifications that are already queued.
func drain(notify <-chan *pq.Notification) {
	for {
		select {
		case <-notify:
		default:
			return
		}
	}
}

func (f *ChangeFeed) broadcast(ctx context.Context) {
	f.mu.Lock()
	handlers := make([]ports.SnapshotHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	if len(handlers) == 0 {
		return
	}

	snapshot, err := fetchAll(ctx, f.db)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		err = errs.NewStoreUnavailableError("fetch all orders", err)
		f.logger.WarnContext(ctx, "Failed to read orders after notification", "error", err)
	}

	for _, h := range handlers {
		h(snapshot, err)
	}
}
