// Package control wires the application together and manages its
// lifecycle: construction, startup, and graceful shutdown.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sethretry "github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/hookbridge/internal/core/config"
	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/core/worker"
	"github.com/vietddude/hookbridge/internal/dispatch"
	"github.com/vietddude/hookbridge/internal/health"
	"github.com/vietddude/hookbridge/internal/hooks"
	redisclient "github.com/vietddude/hookbridge/internal/infra/redis"
	"github.com/vietddude/hookbridge/internal/infra/storage"
	"github.com/vietddude/hookbridge/internal/infra/storage/memory"
	"github.com/vietddude/hookbridge/internal/infra/storage/postgres"
	"github.com/vietddude/hookbridge/internal/notify"
	"github.com/vietddude/hookbridge/internal/queue"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/errstats"
	"github.com/vietddude/hookbridge/internal/resilience/fallback"
	"github.com/vietddude/hookbridge/internal/resilience/retry"
)

// App is the assembled application.
type App struct {
	cfg *config.AppConfig
	log *slog.Logger

	engine     *hooks.Engine
	dispatcher *dispatch.Dispatcher
	redelivery *queue.Queue
	scheduler  *queue.Scheduler
	monitor    *health.Monitor
	server     *health.Server
	pruner     *worker.Pruner

	db          *postgres.DB
	redisClient *redisclient.Client
	gateway     *notify.GatewayNotifier

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewApp builds the application from config. External connections
// (PostgreSQL, Redis) are retried with backoff so the service survives
// starting before its dependencies.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := slog.Default()
	app := &App{cfg: cfg, log: log}

	stats := errstats.NewCollector()
	breakers := breaker.NewRegistry(cfg.Breaker)
	cascade := fallback.New(fallback.Config{
		MaxLevel:            fallback.ParseLevel(cfg.Fallback.MaxLevel),
		IncludeErrorDetails: cfg.Fallback.IncludeErrorDetails,
	}, log)

	// Delivery channels.
	channels, err := app.buildChannels()
	if err != nil {
		return nil, err
	}

	// Hook registry.
	registry := hooks.NewRegistry()
	for _, hc := range cfg.Hooks {
		notifier, ok := channels[hc.Channel]
		if !ok {
			return nil, fmt.Errorf("hook %q references unknown channel %q", hc.ID, hc.Channel)
		}
		h := hooks.NewNotificationHook(hc.ID, hc.IsEnabled(), hc.Projects, hc.Categories, notifier)
		if err := registry.Register(h); err != nil {
			return nil, err
		}
		log.Info("registered notification hook",
			"hook", hc.ID, "channel", hc.Channel, "enabled", hc.IsEnabled())
	}

	engine := hooks.NewEngine(hooks.Config{
		ExecutionTimeout: cfg.Server.ExecutionTimeout,
		Policy:           cfg.Retry,
		StopGracePeriod:  cfg.Server.StopGracePeriod,
	}, registry, retry.NewEngine(nil), breakers, cascade, stats, log)
	app.engine = engine

	if cfg.Notify.AdminWebhookURL != "" {
		admin := notify.NewSlackNotifier("admin", cfg.Notify.AdminWebhookURL, cfg.Notify.Timeout)
		engine.SetAdminNotifier(admin)
	}

	// Storage: PostgreSQL when configured, in-memory otherwise.
	var deliveryRepo storage.DeliveryRepository
	var deadLetterRepo storage.DeadLetterRepository
	var deliveryPruner worker.DeliveryPruner
	if cfg.Database.URL != "" {
		db, err := connectPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		app.db = db
		repo := postgres.NewDeliveryRepo(db)
		deliveryRepo, deliveryPruner = repo, repo
		deadLetterRepo = postgres.NewDeadLetterRepo(db)
		log.Info("using PostgreSQL storage")
	} else {
		repo := memory.NewDeliveryRepo()
		deliveryRepo, deliveryPruner = repo, repo
		deadLetterRepo = memory.NewDeadLetterRepo()
		log.Info("using memory storage")
	}
	engine.SetRecorder(deliveryRepo)
	app.pruner = worker.NewPruner(cfg.History.Retention(), deliveryPruner, deadLetterRepo, log)

	// Redelivery queue drains into the first Slack channel, falling back
	// to the admin webhook when no team channel exists.
	drain := drainChannel(cfg, channels)
	if cfg.Queue.Enabled && drain != nil {
		q := queue.New(cfg.Queue, drain, breakers, log)
		q.SetDropFunc(func(ctx context.Context, n *domain.QueuedNotification, reason string) {
			if err := deadLetterRepo.Add(ctx, n, reason); err != nil {
				log.Warn("failed to dead-letter notification", "id", n.ID, "error", err)
			}
		})

		if cfg.Redis.URL != "" {
			client, err := connectRedis(ctx, cfg.Redis)
			if err != nil {
				log.Warn("redis unavailable, queue runs without persistence", "error", err)
			} else {
				app.redisClient = client
				q.SetStore(redisclient.NewQueueStore(client, "hookbridge", cfg.Queue.Retention()))
				if err := q.Restore(ctx); err != nil {
					log.Warn("failed to restore queue from redis", "error", err)
				}
			}
		}

		app.redelivery = q
		app.scheduler = queue.NewScheduler(q, log)
		engine.SetRedeliveryQueue(q)
	}

	var queueStatus health.QueueStatusProvider
	if app.redelivery != nil {
		queueStatus = app.redelivery
	}
	app.monitor = health.NewMonitor(breakers, queueStatus, stats)
	app.dispatcher = dispatch.New(cfg.Dispatch, engine, stats, log)
	app.server = health.NewServer(app.monitor, app.dispatcher, breakers, deliveryRepo, cfg.Server.Port)

	return app, nil
}

// buildChannels constructs the configured notifiers keyed by channel name.
func (a *App) buildChannels() (map[string]notify.Notifier, error) {
	channels := make(map[string]notify.Notifier)
	for _, ch := range a.cfg.Notify.Slack {
		channels[ch.Name] = notify.NewSlackNotifier(ch.Name, ch.WebhookURL, a.cfg.Notify.Timeout)
	}
	if ep := a.cfg.Notify.Gateway.Endpoint; ep != "" {
		gw, err := notify.NewGatewayNotifier("gateway", ep)
		if err != nil {
			return nil, fmt.Errorf("failed to dial notification gateway: %w", err)
		}
		a.gateway = gw
		channels["gateway"] = gw
	}
	return channels, nil
}

func drainChannel(cfg *config.AppConfig, channels map[string]notify.Notifier) notify.Notifier {
	if len(cfg.Notify.Slack) > 0 {
		return channels[cfg.Notify.Slack[0].Name]
	}
	if cfg.Notify.AdminWebhookURL != "" {
		return notify.NewSlackNotifier("admin", cfg.Notify.AdminWebhookURL, cfg.Notify.Timeout)
	}
	return nil
}

func connectPostgres(ctx context.Context, cfg postgres.Config) (*postgres.DB, error) {
	var db *postgres.DB
	backoff := sethretry.WithMaxRetries(5, sethretry.NewExponential(time.Second))
	err := sethretry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		db, err = postgres.NewDB(ctx, cfg)
		if err != nil {
			slog.Warn("postgres not ready, retrying", "error", err)
			return sethretry.RetryableError(err)
		}
		return nil
	})
	return db, err
}

func connectRedis(ctx context.Context, cfg redisclient.Config) (*redisclient.Client, error) {
	var client *redisclient.Client
	backoff := sethretry.WithMaxRetries(5, sethretry.NewExponential(time.Second))
	err := sethretry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		client, err = redisclient.NewClient(cfg)
		if err != nil {
			slog.Warn("redis not ready, retrying", "error", err)
			return sethretry.RetryableError(err)
		}
		return nil
	})
	return client, err
}

// Start launches the HTTP server, the health monitor, and the redelivery
// scheduler.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.group, runCtx = errgroup.WithContext(runCtx)

	a.group.Go(func() error {
		a.log.Info("http server listening", "port", a.cfg.Server.Port)
		if err := a.server.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	a.group.Go(func() error {
		a.monitor.Start(runCtx)
		return nil
	})

	a.group.Go(func() error {
		a.pruner.Start(runCtx)
		return nil
	})

	if a.scheduler != nil {
		if err := a.scheduler.Start(runCtx); err != nil {
			return err
		}
	}

	return nil
}

// Stop shuts the application down in dependency order: stop accepting
// webhooks, drain in-flight executions, then close connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping...")

	if err := a.server.Stop(ctx); err != nil {
		a.log.Warn("http server shutdown error", "error", err)
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if err := a.engine.Stop(ctx); err != nil {
		a.log.Warn("engine shutdown error", "error", err)
	}

	if a.cancel != nil {
		a.cancel()
	}
	if a.group != nil {
		if err := a.group.Wait(); err != nil {
			a.log.Warn("background task error", "error", err)
		}
	}

	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			a.log.Warn("failed to close gateway connection", "error", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", "error", err)
		}
	}

	a.log.Info("stopped")
	return nil
}
