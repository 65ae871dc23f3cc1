// Command notifyd runs the notification engine as an HTTP service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/harvestlane/notifykit/internal/db/migrations"
	"github.com/harvestlane/notifykit/pkg/config"
	"github.com/harvestlane/notifykit/pkg/email"
	"github.com/harvestlane/notifykit/pkg/httpserver"
	"github.com/harvestlane/notifykit/pkg/logger"
	"github.com/harvestlane/notifykit/pkg/notifications"
	"github.com/harvestlane/notifykit/pkg/notifications/pgstore"
	"github.com/harvestlane/notifykit/pkg/pg"
	"github.com/harvestlane/notifykit/pkg/redis"
	"github.com/harvestlane/notifykit/pkg/requestid"
	"github.com/harvestlane/notifykit/svc/notify"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"notifyd"`

	Notify notifications.Config
	Email  email.Config
	PG     pg.Config
	Redis  redis.Config
	HTTP   httpserver.Config
}

func main() {
	cfg := config.MustLoad[appConfig]()

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), notify.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifyd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	policy, err := notifications.LoadPolicyFile(cfg.Notify.PolicyFile)
	if err != nil {
		return err
	}

	var (
		store     notifications.Storage
		directory interface {
			notifications.Directory
			notifications.PreferenceStore
		}
		source    notify.Source
		readiness []func(context.Context) error
	)

	if cfg.PG.Enabled() {
		pool, err := pg.Connect(ctx, cfg.PG)
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.PG.AutoMigrate {
			if err := pg.Migrate(ctx, pool, migrations.FS, cfg.PG, log); err != nil {
				return err
			}
		}
		store = pgstore.NewStore(pool)
		directory = pgstore.NewDirectory(pool)
		source = notify.NewPGSource(pool)
		readiness = append(readiness, pg.Healthcheck(pool))
	} else {
		log.Warn("PG_CONN_URL not set, using in-memory storage")
		store = notifications.NewMemoryStorage()
		directory = notifications.NewMemoryDirectory()
		source = notify.NewMemorySource()
	}

	var guard notify.IdempotencyGuard
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		guard = redis.NewGuard(client, cfg.Redis.KeyPrefix, cfg.Notify.IdempotencyTTL)
		readiness = append(readiness, redis.Healthcheck(client))
	} else {
		guard = notify.NewMemoryGuard(cfg.Notify.IdempotencyTTL)
	}

	sender, err := email.NewFromConfig(cfg.Email)
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		log.Warn("email is not configured, notifications stay in-app only")
	case err != nil:
		return err
	}

	sendPool := notifications.NewSendPool(store,
		append(cfg.Notify.SendPoolOptions(), notifications.WithSendPoolLogger(log))...)
	feed := notifications.NewFeed(cfg.Notify.FeedBuffer)
	defer feed.Close()

	dispatcher := notifications.NewDispatcher(store,
		notifications.NewGate(directory, notifications.WithGateLogger(log)),
		notifications.WithChannelSender(notifications.NewEmailChannel(sender,
			notifications.WithAppName(cfg.Notify.AppName),
			notifications.WithBaseURL(cfg.Notify.AppBaseURL))),
		notifications.WithSendPool(sendPool),
		notifications.WithFeed(feed),
		notifications.WithDispatcherLogger(log))
	resolver := notifications.NewResolver(directory, cfg.Notify.AdminEmails,
		notifications.WithResolverLogger(log))
	notifier := notifications.NewNotifier(resolver, dispatcher,
		notifications.WithPolicy(policy),
		notifications.WithNotifierLogger(log))

	svc := notify.NewService(notifier, source, notify.WithGuard(guard), notify.WithLogger(log))
	routerOpts := []notify.RouterOption{notify.WithFeed(feed), notify.WithRouterLogger(log)}
	for _, check := range readiness {
		routerOpts = append(routerOpts, notify.WithReadinessCheck(check))
	}
	router := notify.NewRouter(svc, routerOpts...)

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	// start before serving so early requests are not rejected by a stopped pool
	sendPool.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(sendPool.Run(gctx, cfg.Notify.SendDrain))
	g.Go(func() error { return server.Run(gctx, router) })
	return g.Wait()
}
