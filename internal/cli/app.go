package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"papa-puns/internal/acquire"
	"papa-puns/internal/background"
	"papa-puns/internal/cache"
	"papa-puns/internal/config"
	"papa-puns/internal/jokeapi"
	"papa-puns/internal/notifier"
	"papa-puns/internal/queue"
	"papa-puns/internal/store"
	"papa-puns/pkg/logger"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	store   store.Store
	daily   *cache.Daily
	fetcher *jokeapi.Fetcher
	subs    *notifier.Subscriptions
	queue   *queue.NATS
	policy  *acquire.Policy
}

// loadConfig reads the configuration and applies the persistent flag
// overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if storeDriver != "" {
		cfg.Store.Driver = config.StoreDriver(storeDriver)
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp opens the store and wires the acquisition policy. The notifier is
// attached only when withNotifier is set, notifications are enabled and NATS
// is reachable.
func newApp(ctx context.Context, logOut io.Writer, withNotifier bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger.InitWithFormat(cfg.App.LogLevel, cfg.App.LogFormat, logOut)

	st, err := store.Open(ctx, cfg)
	if err != nil {
		var connErr *store.ConnectionError
		if errors.As(err, &connErr) {
			logger.Error("Failed to connect to database",
				logger.Err(connErr),
				logger.String("host", cfg.Database.Host),
				logger.Int("port", cfg.Database.Port),
			)
		}
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Debug("Store opened", logger.String("driver", string(cfg.Store.Driver)))

	fetcher, err := jokeapi.New(cfg.Service)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		store:   st,
		daily:   cache.New(st),
		fetcher: fetcher,
		subs:    notifier.NewSubscriptions(st),
	}

	var notify acquire.Notifier
	if withNotifier && cfg.Notifier.Enabled {
		q, err := queue.New(cfg.NATS)
		if err != nil {
			logger.Warn("NATS unavailable, notifications disabled",
				logger.String("url", cfg.NATS.URL),
				logger.Err(err),
			)
		} else {
			logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL))
			a.queue = q
			notify = notifier.New(q, a.subs)
		}
	}

	a.policy = acquire.New(a.daily, fetcher, notify)
	return a, nil
}

// scheduler builds the background scheduler around the daily trigger.
func (a *app) scheduler() *background.Scheduler {
	status := background.StatusAvailable
	if !a.cfg.Background.Enabled {
		status = background.StatusDenied
	}
	trigger := background.NewTrigger(a.policy)
	return background.NewScheduler(a.store, trigger.Run, background.WithStatus(status))
}

func (a *app) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("Failed to close store", logger.Err(err))
	}
}
