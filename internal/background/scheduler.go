package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"papa-puns/internal/config"
	"papa-puns/internal/models"
	"papa-puns/internal/store"
	"papa-puns/pkg/logger"
)

const (
	TaskName        = "daily-joke-background-task"
	RegistrationKey = "papa_puns_background_task"
)

var ErrNotRegistered = errors.New("background task is not registered")

type Status int

const (
	StatusAvailable Status = iota
	StatusRestricted
	StatusDenied
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	default:
		return "unknown"
	}
}

type Options struct {
	MinimumInterval time.Duration
	StopOnTerminate bool
	StartOnBoot     bool
}

func OptionsFromConfig(cfg config.BackgroundConfig) Options {
	return Options{
		MinimumInterval: cfg.Interval,
		StopOnTerminate: cfg.StopOnTerminate,
		StartOnBoot:     cfg.StartOnBoot,
	}
}

type Registration struct {
	Name            string    `json:"name"`
	IntervalSeconds int64     `json:"minimum_interval"`
	StopOnTerminate bool      `json:"stop_on_terminate"`
	StartOnBoot     bool      `json:"start_on_boot"`
	RegisteredAt    time.Time `json:"registered_at"`
}

func (r Registration) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

type Task func(ctx context.Context) models.Outcome

type tickerFunc func(d time.Duration) (<-chan time.Time, func())

// Scheduler runs one task periodically. Runs never overlap: a run that is
// due while another is in flight is skipped.
type Scheduler struct {
	store     store.Store
	task      Task
	status    Status
	now       func() time.Time
	newTicker tickerFunc

	runMu       sync.Mutex
	mu          sync.Mutex
	lastOutcome models.Outcome
	lastRun     time.Time
}

type SchedulerOption func(*Scheduler)

func WithStatus(status Status) SchedulerOption {
	return func(s *Scheduler) {
		s.status = status
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

func withTicker(fn tickerFunc) SchedulerOption {
	return func(s *Scheduler) {
		s.newTicker = fn
	}
}

func NewScheduler(st store.Store, task Task, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:  st,
		task:   task,
		status: StatusAvailable,
		now:    time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Status() Status {
	return s.status
}

// Register records the task. It returns false without error when
// background execution is restricted or denied. An existing registration
// is left untouched.
func (s *Scheduler) Register(ctx context.Context, opts Options) (bool, error) {
	if opts.MinimumInterval < config.MinimumBackgroundInterval {
		return false, fmt.Errorf("%w: got %s", config.ErrInvalidInterval, opts.MinimumInterval)
	}

	if s.status == StatusRestricted || s.status == StatusDenied {
		logger.Warn("Background refresh unavailable", logger.String("status", s.status.String()))
		return false, nil
	}

	existing, err := s.Registration(ctx)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return true, nil
	}

	reg := Registration{
		Name:            TaskName,
		IntervalSeconds: int64(opts.MinimumInterval / time.Second),
		StopOnTerminate: opts.StopOnTerminate,
		StartOnBoot:     opts.StartOnBoot,
		RegisteredAt:    s.now().UTC(),
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return false, fmt.Errorf("failed to marshal registration: %w", err)
	}
	if err := s.store.Set(ctx, RegistrationKey, data); err != nil {
		return false, fmt.Errorf("failed to save registration: %w", err)
	}

	logger.Info("Registered background task",
		logger.String("task", TaskName),
		logger.Duration("interval", opts.MinimumInterval),
	)
	return true, nil
}

// Registration returns nil when the task is not registered.
func (s *Scheduler) Registration(ctx context.Context) (*Registration, error) {
	data, found, err := s.store.Get(ctx, RegistrationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read registration: %w", err)
	}
	if !found {
		return nil, nil
	}
	var reg Registration
	if err := json.Unmarshal(data, &reg); err != nil || reg.IntervalSeconds <= 0 {
		logger.Warn("Ignoring corrupt background task registration")
		return nil, nil
	}
	return &reg, nil
}

func (s *Scheduler) Unregister(ctx context.Context) error {
	if err := s.store.Delete(ctx, RegistrationKey); err != nil {
		return fmt.Errorf("failed to remove registration: %w", err)
	}
	return nil
}

// Start blocks, running the task every registered interval until ctx is
// done.
func (s *Scheduler) Start(ctx context.Context) error {
	reg, err := s.Registration(ctx)
	if err != nil {
		return err
	}
	if reg == nil {
		return ErrNotRegistered
	}

	logger.Info("Background scheduler started",
		logger.Duration("interval", reg.Interval()),
		logger.Bool("start_on_boot", reg.StartOnBoot),
	)

	if reg.StartOnBoot {
		s.RunNow(ctx)
	}

	ticks, stop := s.newTicker(reg.Interval())
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			s.RunNow(ctx)
		}
	}
}

// Stop removes the registration when it asked to stop on termination.
func (s *Scheduler) Stop(ctx context.Context) error {
	reg, err := s.Registration(ctx)
	if err != nil || reg == nil {
		return err
	}
	if !reg.StopOnTerminate {
		return nil
	}
	return s.Unregister(ctx)
}

// RunNow runs the task once. ran is false when a run was already in flight.
func (s *Scheduler) RunNow(ctx context.Context) (outcome models.Outcome, ran bool) {
	if !s.runMu.TryLock() {
		logger.Debug("Background run already in flight, skipping")
		return "", false
	}
	defer s.runMu.Unlock()

	started := s.now()
	outcome = s.task(ctx)

	s.mu.Lock()
	s.lastOutcome = outcome
	s.lastRun = started
	s.mu.Unlock()

	logger.Info("Background run finished",
		logger.String("outcome", string(outcome)),
		logger.Duration("took", s.now().Sub(started)),
	)
	return outcome, true
}

func (s *Scheduler) LastRun() (models.Outcome, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome, s.lastRun
}
