// Package cache keeps the day's joke in a single store slot.
//
// The slot holds {"date": "YYYY-MM-DD", "joke": {...}} where date is the
// host-local calendar day of the write. Unreadable or malformed slots read
// as empty; only store failures are reported, as *StorageError.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"papa-puns/internal/models"
	"papa-puns/internal/store"
	"papa-puns/pkg/logger"
)

const (
	StorageKey = "papa_puns_daily_joke"
	DateLayout = "2006-01-02"
)

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("daily cache %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type Daily struct {
	store store.Store
	now   func() time.Time
	loc   *time.Location
}

type Option func(*Daily)

func WithClock(now func() time.Time) Option {
	return func(d *Daily) {
		d.now = now
	}
}

func WithLocation(loc *time.Location) Option {
	return func(d *Daily) {
		d.loc = loc
	}
}

func New(s store.Store, opts ...Option) *Daily {
	d := &Daily{
		store: s,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Today returns the local calendar day as YYYY-MM-DD.
func (d *Daily) Today() string {
	return d.now().In(d.loc).Format(DateLayout)
}

func (d *Daily) IsToday(dateKey string) bool {
	return dateKey == d.Today()
}

// Read returns nil when no usable entry is stored.
func (d *Daily) Read(ctx context.Context) (*models.CacheEntry, error) {
	data, found, err := d.store.Get(ctx, StorageKey)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	if !found || len(data) == 0 {
		return nil, nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warn("Ignoring corrupt daily cache entry", logger.Err(err))
		return nil, nil
	}
	if entry.Date == "" || entry.Joke.IsZero() {
		return nil, nil
	}
	return &entry, nil
}

// Write stores joke as today's entry, replacing whatever was there.
func (d *Daily) Write(ctx context.Context, joke models.Joke) error {
	entry := models.CacheEntry{
		Date: d.Today(),
		Joke: joke,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := d.store.Set(ctx, StorageKey, data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}
