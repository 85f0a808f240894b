// Package acquire decides whether the day's joke comes from the cache or
// from the joke service.
//
// At most one fetch happens per calendar day unless a caller forces it.
// A failed fetch falls back to whatever joke is cached, whatever its date;
// the fetch error only surfaces when nothing is cached at all.
package acquire

import (
	"context"
	"fmt"

	"papa-puns/internal/models"
	"papa-puns/pkg/logger"
)

type Cache interface {
	Read(ctx context.Context) (*models.CacheEntry, error)
	Write(ctx context.Context, joke models.Joke) error
	IsToday(dateKey string) bool
}

type Fetcher interface {
	Fetch(ctx context.Context) (models.Joke, error)
}

type Notifier interface {
	Notify(ctx context.Context, joke models.Joke) error
}

type Options struct {
	// ForceFetch skips the cache freshness check.
	ForceFetch bool
	// NotifyOnNewJoke sends a notification when a fetch rolls the day over.
	NotifyOnNewJoke bool
}

type Policy struct {
	cache    Cache
	fetcher  Fetcher
	notifier Notifier
}

// New builds a policy. A nil notifier disables notifications.
func New(c Cache, f Fetcher, n Notifier) *Policy {
	return &Policy{cache: c, fetcher: f, notifier: n}
}

func (p *Policy) Acquire(ctx context.Context, opts Options) (models.AcquisitionResult, error) {
	prior, err := p.cache.Read(ctx)
	if err != nil {
		logger.Warn("Reading daily cache failed, treating as empty", logger.Err(err))
		prior = nil
	}

	hasTodayJoke := prior != nil && p.cache.IsToday(prior.Date)
	if hasTodayJoke && !opts.ForceFetch {
		logger.Debug("Serving today's joke from cache", logger.String("date", prior.Date))
		return models.AcquisitionResult{Joke: prior.Joke, FromCache: true}, nil
	}

	joke, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return p.fallback(ctx, err)
	}

	if err := p.cache.Write(ctx, joke); err != nil {
		return models.AcquisitionResult{}, fmt.Errorf("failed to store fetched joke: %w", err)
	}

	hasNewJoke := prior != nil && !prior.Joke.IsZero() && !p.cache.IsToday(prior.Date)
	if opts.NotifyOnNewJoke && hasNewJoke && p.notifier != nil {
		if err := p.notifier.Notify(ctx, joke); err != nil {
			logger.Warn("New joke notification not delivered", logger.Err(err))
		}
	}

	logger.Info("Fetched new joke",
		logger.String("id", joke.ID()),
		logger.Bool("forced", opts.ForceFetch),
		logger.Bool("has_new_joke", hasNewJoke),
	)

	return models.AcquisitionResult{Joke: joke, HasNewJoke: hasNewJoke}, nil
}

// fallback re-reads the cache after a failed fetch. Any cached joke wins
// over the fetch error.
func (p *Policy) fallback(ctx context.Context, fetchErr error) (models.AcquisitionResult, error) {
	cached, err := p.cache.Read(ctx)
	if err != nil {
		logger.Warn("Reading daily cache during fallback failed", logger.Err(err))
		cached = nil
	}

	if cached == nil || cached.Joke.IsZero() {
		logger.Error("Fetching joke failed and nothing is cached", logger.Err(fetchErr))
		return models.AcquisitionResult{}, fetchErr
	}

	logger.Warn("Fetching joke failed, serving cached joke",
		logger.String("date", cached.Date),
		logger.Err(fetchErr),
	)
	return models.AcquisitionResult{Joke: cached.Joke, FromCache: true, Stale: true}, nil
}
