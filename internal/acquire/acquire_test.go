package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"papa-puns/internal/cache"
	"papa-puns/internal/jokeapi"
	"papa-puns/internal/models"
	"papa-puns/internal/store"
)

var today = time.Date(2024, 7, 15, 9, 30, 0, 0, time.Local)

type fakeFetcher struct {
	jokes []string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context) (models.Joke, error) {
	f.calls++
	if f.err != nil {
		return models.Joke{}, f.err
	}
	text := "fresh"
	if len(f.jokes) > 0 {
		text = f.jokes[0]
		f.jokes = f.jokes[1:]
	}
	return models.JokeFromText(text), nil
}

type fakeNotifier struct {
	err  error
	sent []string
}

func (n *fakeNotifier) Notify(_ context.Context, joke models.Joke) error {
	text, _ := joke.Text()
	n.sent = append(n.sent, text)
	return n.err
}

type brokenStore struct {
	*store.Memory
	failGet bool
	failSet bool
}

func (b *brokenStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.failGet {
		return nil, false, errors.New("read failed")
	}
	return b.Memory.Get(ctx, key)
}

func (b *brokenStore) Set(ctx context.Context, key string, value []byte) error {
	if b.failSet {
		return errors.New("write failed")
	}
	return b.Memory.Set(ctx, key, value)
}

func newCache(s store.Store) *cache.Daily {
	return cache.New(s, cache.WithClock(func() time.Time { return today }))
}

func seed(t *testing.T, s store.Store, date, text string) {
	t.Helper()
	data, err := json.Marshal(models.CacheEntry{Date: date, Joke: models.JokeFromText(text)})
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := s.Set(context.Background(), cache.StorageKey, data); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func textOf(t *testing.T, j models.Joke) string {
	t.Helper()
	text, ok := j.Text()
	if !ok {
		t.Fatalf("joke has no text: %s", j.Bytes())
	}
	return text
}

func TestCacheHitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s, "2024-07-15", "cached")
	f := &fakeFetcher{}
	p := New(newCache(s), f, nil)

	for _, notify := range []bool{false, true} {
		first, err := p.Acquire(ctx, Options{NotifyOnNewJoke: notify})
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		second, err := p.Acquire(ctx, Options{NotifyOnNewJoke: notify})
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}

		if textOf(t, first.Joke) != "cached" || textOf(t, second.Joke) != "cached" {
			t.Errorf("jokes = %q, %q; want cached twice", textOf(t, first.Joke), textOf(t, second.Joke))
		}
		if !first.FromCache || !second.FromCache || first.HasNewJoke || first.Stale {
			t.Errorf("unexpected flags: %+v %+v", first, second)
		}
	}
	if f.calls != 0 {
		t.Errorf("fetch calls = %d, want 0", f.calls)
	}
}

func TestForceFetchBypassesCache(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{"empty cache", ""},
		{"fresh cache", "2024-07-15"},
		{"stale cache", "2024-07-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemory()
			if tt.seed != "" {
				seed(t, s, tt.seed, "cached")
			}
			f := &fakeFetcher{jokes: []string{"forced"}}
			p := New(newCache(s), f, nil)

			res, err := p.Acquire(context.Background(), Options{ForceFetch: true})
			if err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			if f.calls != 1 {
				t.Errorf("fetch calls = %d, want 1", f.calls)
			}
			if res.FromCache || textOf(t, res.Joke) != "forced" {
				t.Errorf("result = %+v, want fetched joke", res)
			}
		})
	}
}

func TestForceFetchOnFreshCacheIsNotNewJoke(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, "2024-07-15", "cached")
	n := &fakeNotifier{}
	p := New(newCache(s), &fakeFetcher{}, n)

	res, err := p.Acquire(context.Background(), Options{ForceFetch: true, NotifyOnNewJoke: true})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if res.HasNewJoke {
		t.Error("HasNewJoke = true for a same-day refresh")
	}
	if len(n.sent) != 0 {
		t.Errorf("notifications = %v, want none", n.sent)
	}
}

func TestRolloverDetection(t *testing.T) {
	tests := []struct {
		name        string
		seed        string
		notify      bool
		wantNewJoke bool
		wantSent    int
	}{
		{"yesterday with notify", "2024-07-14", true, true, 1},
		{"yesterday without notify", "2024-07-14", false, true, 0},
		{"last month", "2024-06-30", true, true, 1},
		{"empty cache", "", true, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemory()
			if tt.seed != "" {
				seed(t, s, tt.seed, "old")
			}
			n := &fakeNotifier{}
			p := New(newCache(s), &fakeFetcher{jokes: []string{"new"}}, n)

			res, err := p.Acquire(context.Background(), Options{NotifyOnNewJoke: tt.notify})
			if err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			if res.HasNewJoke != tt.wantNewJoke {
				t.Errorf("HasNewJoke = %v, want %v", res.HasNewJoke, tt.wantNewJoke)
			}
			if res.FromCache {
				t.Error("FromCache = true after a fetch")
			}
			if len(n.sent) != tt.wantSent {
				t.Errorf("notifications = %d, want %d", len(n.sent), tt.wantSent)
			}
			if tt.wantSent > 0 && n.sent[0] != "new" {
				t.Errorf("notified joke = %q, want new", n.sent[0])
			}
		})
	}
}

func TestFetchWritesCache(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s, "2024-07-14", "old")
	c := newCache(s)
	p := New(c, &fakeFetcher{jokes: []string{"new"}}, nil)

	if _, err := p.Acquire(ctx, Options{}); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	entry, err := c.Read(ctx)
	if err != nil || entry == nil {
		t.Fatalf("Read() = %v, %v", entry, err)
	}
	if entry.Date != "2024-07-15" || textOf(t, entry.Joke) != "new" {
		t.Errorf("cache = %s %q, want 2024-07-15 new", entry.Date, textOf(t, entry.Joke))
	}
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, "2024-07-14", "old")
	n := &fakeNotifier{err: errors.New("no permission")}
	p := New(newCache(s), &fakeFetcher{jokes: []string{"new"}}, n)

	res, err := p.Acquire(context.Background(), Options{NotifyOnNewJoke: true})
	if err != nil {
		t.Fatalf("Acquire() error = %v, want nil", err)
	}
	if !res.HasNewJoke || len(n.sent) != 1 {
		t.Errorf("result = %+v, sent = %v", res, n.sent)
	}
}

func TestFallbackOnFetchFailure(t *testing.T) {
	fetchErr := &jokeapi.TransportError{StatusCode: 503}

	tests := []struct {
		name  string
		seed  string
		force bool
	}{
		{"stale cache", "2024-07-10", false},
		{"fresh cache forced", "2024-07-15", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemory()
			seed(t, s, tt.seed, "cached")
			n := &fakeNotifier{}
			p := New(newCache(s), &fakeFetcher{err: fetchErr}, n)

			res, err := p.Acquire(context.Background(), Options{ForceFetch: tt.force, NotifyOnNewJoke: true})
			if err != nil {
				t.Fatalf("Acquire() error = %v, want nil", err)
			}
			if textOf(t, res.Joke) != "cached" {
				t.Errorf("joke = %q, want cached", textOf(t, res.Joke))
			}
			if !res.FromCache || !res.Stale || res.HasNewJoke {
				t.Errorf("flags = %+v, want FromCache and Stale", res)
			}
			if len(n.sent) != 0 {
				t.Error("fallback must not notify")
			}
		})
	}
}

func TestFetchErrorWithEmptyCache(t *testing.T) {
	fetchErr := &jokeapi.ParseError{Err: models.ErrNotJSONObject}
	p := New(newCache(store.NewMemory()), &fakeFetcher{err: fetchErr}, nil)

	_, err := p.Acquire(context.Background(), Options{})
	var parseErr *jokeapi.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Acquire() error = %v, want ParseError", err)
	}
}

func TestFallbackTreatsCorruptCacheAsEmpty(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	s.Set(ctx, cache.StorageKey, []byte("{not json"))
	fetchErr := errors.New("offline")
	p := New(newCache(s), &fakeFetcher{err: fetchErr}, nil)

	if _, err := p.Acquire(ctx, Options{}); !errors.Is(err, fetchErr) {
		t.Errorf("Acquire() error = %v, want %v", err, fetchErr)
	}
}

func TestReadFailuresAreNotFatal(t *testing.T) {
	s := &brokenStore{Memory: store.NewMemory(), failGet: true}
	f := &fakeFetcher{jokes: []string{"new"}}
	p := New(newCache(s), f, nil)

	res, err := p.Acquire(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if f.calls != 1 || textOf(t, res.Joke) != "new" || res.HasNewJoke {
		t.Errorf("result = %+v, calls = %d", res, f.calls)
	}

	fetchErr := errors.New("offline")
	p = New(newCache(s), &fakeFetcher{err: fetchErr}, nil)
	if _, err := p.Acquire(context.Background(), Options{}); !errors.Is(err, fetchErr) {
		t.Errorf("Acquire() error = %v, want fetch error", err)
	}
}

func TestWriteFailureSurfaces(t *testing.T) {
	s := &brokenStore{Memory: store.NewMemory(), failSet: true}
	p := New(newCache(s), &fakeFetcher{}, nil)

	_, err := p.Acquire(context.Background(), Options{})
	var storageErr *cache.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("Acquire() error = %v, want StorageError", err)
	}
}

func TestSameDayRelaunchServesCache(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	f := &fakeFetcher{jokes: []string{"A", "B"}}

	first, err := New(newCache(s), f, nil).Acquire(ctx, Options{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if textOf(t, first.Joke) != "A" || first.FromCache || first.HasNewJoke {
		t.Errorf("first launch = %+v", first)
	}

	second, err := New(newCache(s), f, nil).Acquire(ctx, Options{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if textOf(t, second.Joke) != "A" || !second.FromCache {
		t.Errorf("relaunch = %+v, want cached A", second)
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
}
