package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	insurai "github.com/goliatone/go-insurai"
	"github.com/goliatone/go-insurai/adapters/redisnotify"
	"github.com/goliatone/go-insurai/config"
)

// app holds the process wide collaborators built from config.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *bun.DB
	repo       insurai.RepositoryManager
	tokens     *insurai.TokenServiceImpl
	dispatcher *insurai.AsyncDispatcher
	redis      *redis.Client
	portal     *insurai.Portal
}

func loadApp(out io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(out, cfg.Logging)

	db, err := insurai.OpenDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	repo := insurai.NewRepositoryManager(db, insurai.WithPersistenceConfig(insurai.PersistenceConfig{
		Debug:       cfg.Database.Debug,
		PingTimeout: cfg.Database.PingTimeout,
	}))
	if err := repo.Validate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repo:   repo,
		tokens: insurai.NewTokenService(cfg, logger),
	}
	return a, nil
}

// startNotifications builds the dispatcher with every configured channel.
func (a *app) startNotifications() error {
	channels := []insurai.NotificationChannel{insurai.NewLogChannel(a.logger)}

	n := a.cfg.Notifications
	if n.Webhook.URL != "" {
		channels = append(channels, insurai.NewWebhookChannel(n.Webhook.URL,
			insurai.WithWebhookHeaders(n.Webhook.Headers),
		))
	}
	if n.Redis.Addr != "" {
		ch, client, err := redisnotify.NewClient(n.Redis.Addr, n.Redis.Password, n.Redis.DB, n.Redis.ListKey)
		if err != nil {
			return err
		}
		a.redis = client
		channels = append(channels, ch)
	}

	a.dispatcher = insurai.NewDispatcher(channels,
		insurai.WithDispatcherWorkers(n.Workers),
		insurai.WithDispatcherQueueSize(n.QueueSize),
		insurai.WithDeliveryTimeout(n.DeliveryTimeout),
		insurai.WithDispatcherLogger(a.logger),
	)
	return nil
}

func (a *app) buildPortal() *insurai.Portal {
	opts := insurai.PortalOptions{
		Logger:            a.logger,
		Hasher:            insurai.NewBcryptHasher(a.cfg.Auth.BcryptCost),
		AuthScheme:        a.cfg.GetAuthScheme(),
		RenewalWindowDays: a.cfg.Renewals.WindowDays,
	}
	if a.dispatcher != nil {
		opts.Notifier = a.dispatcher
	}
	a.portal = insurai.NewPortal(a.repo, a.tokens, opts)
	return a.portal
}

func (a *app) close(ctx context.Context) {
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			a.logger.Warn("notification queue not drained", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newLogger(out io.Writer, cfg config.Logging) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
