package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpadapter "dispatch/internal/adapters/in/http"
	"dispatch/internal/adapters/out/kafka"
	"dispatch/internal/adapters/out/memory"
	"dispatch/internal/adapters/out/postgres"
	"dispatch/internal/adapters/out/postgres/courierrepo"
	"dispatch/internal/adapters/out/postgres/orderrepo"
	"dispatch/internal/adapters/out/redisstore"
	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/application/session"
	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/jobs"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const readHeaderTimeout = 5 * time.Second

type courierDirectory interface {
	ports.CourierRepository
	ports.AuthGateway
}

type orderStore interface {
	ports.OrderStore
	ports.OrderRepository
}

// CompositionRoot owns every long-lived dependency of the process.
type CompositionRoot struct {
	cfg    Config
	logger *slog.Logger

	gormDB      *gorm.DB
	feed        *orderrepo.ChangeFeed
	redisClient *redis.Client
	publisher   *kafka.OrderEventPublisher

	orders   orderStore
	couriers courierDirectory
	presence ports.PresenceSink
	markers  ports.SessionMarkerStore

	reconciler *reconciler.Reconciler
	jobs       *jobs.JobManager
	sessions   *session.Manager
	engine     services.TransitionEngine
}

func NewCompositionRoot(ctx context.Context, cfg Config, logger *slog.Logger) (_ *CompositionRoot, err error) {
	c := &CompositionRoot{
		cfg:    cfg,
		logger: logger,
		engine: services.NewTransitionEngine(nil),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if err = c.initStores(ctx); err != nil {
		return nil, err
	}
	if err = c.initCollaborators(ctx); err != nil {
		return nil, err
	}

	var publisher ports.OrderEventPublisher
	if c.publisher != nil {
		publisher = c.publisher
	}
	c.reconciler, err = reconciler.New(c.orders, publisher, cfg.RefetchDelay, logger)
	if err != nil {
		return nil, err
	}
	c.jobs, err = jobs.NewJobManager(c.couriers, c.reconciler, c.markers, cfg.ValidityCheckInterval, logger)
	if err != nil {
		return nil, err
	}
	c.sessions, err = session.NewManager(c.couriers, c.presence, c.markers, c.reconciler, c.jobs, logger)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *CompositionRoot) initStores(ctx context.Context) error {
	switch c.cfg.StoreDriver {
	case StoreDriverMemory:
		c.orders = memory.NewOrderStore()
		c.couriers = memory.NewCourierDirectory()
		c.logger.Warn("Using in-memory stores, data is lost on exit")
		return nil
	case StoreDriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.cfg.StoreDriver)
	}

	dsn := postgres.DSN(c.cfg.DBHost, c.cfg.DBPort, c.cfg.DBUser, c.cfg.DBPassword, c.cfg.DBName, c.cfg.DBSslMode)
	db, err := postgres.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	c.gormDB = db

	if err = postgres.Migrate(ctx, db, c.cfg.OrdersNotifyChannel); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	c.feed = orderrepo.NewChangeFeed(db, dsn, c.cfg.OrdersNotifyChannel, c.logger)
	c.orders = orderrepo.NewGormOrderRepository(db, c.feed)
	c.couriers = courierrepo.NewGormCourierRepository(db)
	c.logger.Info("Connected to postgres", "host", c.cfg.DBHost, "database", c.cfg.DBName)
	return nil
}

func (c *CompositionRoot) initCollaborators(ctx context.Context) error {
	if c.cfg.RedisURL == "" {
		c.presence = memory.NewPresenceSink()
		c.markers = memory.NewSessionMarkers()
	} else {
		client, err := redisstore.NewClient(ctx, c.cfg.RedisURL)
		if err != nil {
			return err
		}
		c.redisClient = client
		c.presence = redisstore.NewPresenceSink(client)
		c.markers = redisstore.NewSessionMarkers(client, c.cfg.SessionTTL)
	}

	if len(c.cfg.KafkaBrokers) > 0 {
		writer, err := kafka.NewWriter(c.cfg.KafkaBrokers, c.cfg.KafkaOrderChangedTopic)
		if err != nil {
			return err
		}
		c.publisher, err = kafka.NewOrderEventPublisher(writer)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *CompositionRoot) CreateAcceptOrderCommandHandler() commands.AcceptOrderCommandHandler {
	return commands.NewAcceptOrderCommandHandler(c.engine)
}

func (c *CompositionRoot) CreateAdvanceStatusCommandHandler() commands.AdvanceStatusCommandHandler {
	return commands.NewAdvanceStatusCommandHandler(c.engine)
}

func (c *CompositionRoot) CreateConfirmDeliveryCommandHandler() commands.ConfirmDeliveryCommandHandler {
	return commands.NewConfirmDeliveryCommandHandler(c.engine)
}

// CreateGetCourierHistoryQueryHandler returns nil without a database.
func (c *CompositionRoot) CreateGetCourierHistoryQueryHandler() *queries.GetCourierHistoryQueryHandler {
	if c.gormDB == nil {
		return nil
	}
	handler := queries.NewGetCourierHistoryQueryHandler(c.gormDB)
	return &handler
}

// CreateGetEarningsQueryHandler returns nil without a database.
func (c *CompositionRoot) CreateGetEarningsQueryHandler() *queries.GetEarningsQueryHandler {
	history := c.CreateGetCourierHistoryQueryHandler()
	if history == nil {
		return nil
	}
	handler := queries.NewGetEarningsQueryHandler(*history)
	return &handler
}

func (c *CompositionRoot) CreateHTTPServer(ctx context.Context) (*http.Server, error) {
	server, err := httpadapter.NewServer(
		c.sessions,
		c.CreateAcceptOrderCommandHandler(),
		c.CreateAdvanceStatusCommandHandler(),
		c.CreateConfirmDeliveryCommandHandler(),
		c.CreateGetEarningsQueryHandler(),
		c.CreateGetCourierHistoryQueryHandler(),
		c.logger,
	)
	if err != nil {
		return nil, err
	}

	router, err := httpadapter.NewRouter(ctx, server, c.logger)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", c.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}

// Seed stores the demo courier and offers.
func (c *CompositionRoot) Seed(ctx context.Context) error {
	return SeedDemo(ctx, c.couriers, c.orders)
}

// Run serves HTTP and, with postgres, the order change feed until ctx ends
// or one of them fails. Open sessions are closed before it returns.
func (c *CompositionRoot) Run(ctx context.Context) error {
	httpServer, err := c.CreateHTTPServer(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.feed != nil {
		g.Go(func() error {
			return c.feed.Run(gctx)
		})
	}

	g.Go(func() error {
		c.logger.Info("Listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
		defer cancel()

		c.sessions.CloseAll(shutdownCtx)
		c.jobs.StopAll()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Failed to shutdown http server", "error", err)
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases connections. It is safe on a partially built root.
func (c *CompositionRoot) Close() {
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.Warn("Failed to close kafka writer", "error", err)
		}
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.logger.Warn("Failed to close redis client", "error", err)
		}
	}
	if c.gormDB != nil {
		if sqlDB, err := c.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
