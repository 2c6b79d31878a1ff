package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/idkosilov/furniture/internal/config"
	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/handlers"
	"github.com/idkosilov/furniture/internal/infrastructure/kafka"
	"github.com/idkosilov/furniture/internal/infrastructure/store"
	"github.com/idkosilov/furniture/internal/logging"
	"github.com/idkosilov/furniture/internal/messagebus"
	"github.com/idkosilov/furniture/internal/notification"
	"github.com/idkosilov/furniture/internal/observability"
	"github.com/idkosilov/furniture/internal/unitofwork"
	"github.com/idkosilov/furniture/internal/views"
)

// app holds everything a command needs to push events through the bus.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	db      *sql.DB
	dialect store.Dialect
	views   views.Store
	bus     *messagebus.MessageBus
	closers []func(context.Context) error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newApp(ctx context.Context) (_ *app, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()
	a.onClose(func(context.Context) error {
		_ = logger.Sync()
		return nil
	})

	shutdownTracing, err := observability.SetupTracing(ctx,
		cfg.Observability.OtelEndpoint, cfg.Observability.ServiceName, version)
	if err != nil {
		return nil, err
	}
	a.onClose(shutdownTracing)

	if a.dialect, err = store.DialectFor(cfg.Database.Driver); err != nil {
		return nil, err
	}
	if a.db, err = store.Open(ctx, a.dialect, cfg.Database.URL); err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return a.db.Close() })
	if err := store.Migrate(ctx, a.db, a.dialect); err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		a.onClose(func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.views = views.NewRedisStore(client)
	} else {
		a.views = views.NewSQLStore(a.db, a.dialect)
	}

	var notifier notification.Notifier = notification.NewLogNotifier(logger)
	if cfg.SMTP.Host != "" {
		notifier = notification.NewEmailNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)
	}

	var publisher handlers.Publisher = handlers.NopPublisher{}
	if cfg.Kafka.Enabled() && cfg.Kafka.OutboundTopic != "" {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OutboundTopic)
		a.onClose(func(context.Context) error { return producer.Close() })
		publisher = producer
	}

	a.bus = handlers.NewBus(handlers.New(notifier, publisher, a.views, logger), logger)

	logger.Debug("application wired",
		zap.String("database", a.dialect.String()),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("smtp", cfg.SMTP.Host != ""),
		zap.Bool("kafka", cfg.Kafka.Enabled()),
	)
	return a, nil
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *app) newUoW() unitofwork.UnitOfWork {
	return unitofwork.NewSQLUnitOfWork(a.db, a.dialect)
}

func (a *app) handle(ctx context.Context, event events.Event) ([]any, error) {
	return a.bus.Handle(ctx, event, a.newUoW())
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i](ctx))
	}
	a.closers = nil
	return err
}

// withApp builds the app for a single command run and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) (err error) {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(a)
}
