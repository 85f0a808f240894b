// Package controller drives the daily joke for one view.
//
// A Controller starts in StateInitial, moves to StatePending for every
// load, and settles in StateSuccess or StateError. After Close no load
// result is committed, even if the acquisition finishes later.
package controller

import (
	"context"
	"sync"

	"papa-puns/internal/acquire"
	"papa-puns/internal/models"
	"papa-puns/pkg/logger"
)

type Acquirer interface {
	Acquire(ctx context.Context, opts acquire.Options) (models.AcquisitionResult, error)
}

// View is a snapshot of the controller state.
type View struct {
	State models.ViewState
	Joke  models.Joke
	Err   error
	Stale bool
}

// Text returns the joke text to display, if any.
func (v View) Text() (string, bool) {
	if v.Joke.IsZero() {
		return "", false
	}
	return v.Joke.Text()
}

type Controller struct {
	acquirer Acquirer
	onChange func(View)

	// alive is cancelled on Close; commits check it under mu.
	alive context.Context
	close context.CancelFunc

	emitMu sync.Mutex
	mu     sync.Mutex
	view   View
}

type Option func(*Controller)

// WithOnChange registers a callback for every committed state. The
// callback may read the controller but must not start a load.
func WithOnChange(fn func(View)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

func New(a Acquirer, opts ...Option) *Controller {
	alive, cancel := context.WithCancel(context.Background())
	c := &Controller{
		acquirer: a,
		alive:    alive,
		close:    cancel,
		view:     View{State: models.StateInitial},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount loads the day's joke, from cache when possible.
func (c *Controller) Mount(ctx context.Context) View {
	return c.load(ctx, acquire.Options{})
}

// Refresh always asks the joke service for a new joke.
func (c *Controller) Refresh(ctx context.Context) View {
	return c.load(ctx, acquire.Options{ForceFetch: true})
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Close detaches the controller from its view. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
}

func (c *Controller) Closed() bool {
	return c.alive.Err() != nil
}

func (c *Controller) load(ctx context.Context, opts acquire.Options) View {
	c.commit(func(v *View) {
		v.State = models.StatePending
	})

	res, err := c.acquirer.Acquire(ctx, opts)
	if err != nil {
		c.commit(func(v *View) {
			v.State = models.StateError
			v.Err = err
		})
		return c.View()
	}

	c.commit(func(v *View) {
		v.State = models.StateSuccess
		v.Joke = res.Joke
		v.Err = nil
		v.Stale = res.Stale
	})
	return c.View()
}

func (c *Controller) commit(update func(*View)) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.alive.Err() != nil {
		c.mu.Unlock()
		logger.Debug("Dropping state update for closed controller")
		return
	}
	update(&c.view)
	snapshot := c.view
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(snapshot)
	}
}
