package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"papa-puns/internal/store"
	"papa-puns/pkg/logger"
)

const SubscribersKey = "papa_puns_subscribers"

// Subscriptions records which chats granted notification permission.
// Permission counts as granted while at least one chat is subscribed.
type Subscriptions struct {
	store store.Store
	mu    sync.Mutex
}

func NewSubscriptions(s store.Store) *Subscriptions {
	return &Subscriptions{store: s}
}

func (s *Subscriptions) List(ctx context.Context) ([]int64, error) {
	data, found, err := s.store.Get(ctx, SubscribersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscribers: %w", err)
	}
	if !found {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		logger.Warn("Ignoring corrupt subscriber list", logger.Err(err))
		return nil, nil
	}
	return ids, nil
}

// Add reports whether chatID was newly subscribed.
func (s *Subscriptions) Add(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, chatID) {
		return false, nil
	}
	return true, s.save(ctx, append(ids, chatID))
}

// Remove reports whether chatID was subscribed.
func (s *Subscriptions) Remove(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	i := slices.Index(ids, chatID)
	if i < 0 {
		return false, nil
	}
	return true, s.save(ctx, slices.Delete(ids, i, i+1))
}

func (s *Subscriptions) Granted(ctx context.Context) (bool, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (s *Subscriptions) save(ctx context.Context, ids []int64) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal subscribers: %w", err)
	}
	if err := s.store.Set(ctx, SubscribersKey, data); err != nil {
		return fmt.Errorf("failed to write subscribers: %w", err)
	}
	return nil
}
