package notifier

import (
	"context"
	"errors"
	"fmt"

	"papa-puns/internal/models"
	"papa-puns/pkg/logger"

	"github.com/google/uuid"
)

const (
	ChannelID  = "new-joke-alerts"
	Title      = "A new Papa Pun is ready"
	bodySuffix = " Tap to read the full joke in the app."
)

var (
	ErrPermissionDenied = errors.New("notification permission not granted")
	ErrDisabled         = errors.New("notifications are disabled")
)

// Deliverer hands a notification to the delivery channel.
type Deliverer interface {
	EnsureStream(ctx context.Context) error
	PublishNotification(ctx context.Context, msg *models.Notification) error
}

type Permissions interface {
	Granted(ctx context.Context) (bool, error)
}

type Notifier struct {
	deliverer   Deliverer
	permissions Permissions
	enabled     bool
	newID       func() string
}

type Option func(*Notifier)

func WithIDGenerator(fn func() string) Option {
	return func(n *Notifier) {
		n.newID = fn
	}
}

func WithEnabled(enabled bool) Option {
	return func(n *Notifier) {
		n.enabled = enabled
	}
}

func New(d Deliverer, p Permissions, opts ...Option) *Notifier {
	n := &Notifier{
		deliverer:   d,
		permissions: p,
		enabled:     true,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// EnsureReady declares the delivery channel and reports whether
// notifications may be shown. It never asks for permission.
func (n *Notifier) EnsureReady(ctx context.Context) (bool, error) {
	if !n.enabled || n.deliverer == nil {
		return false, nil
	}
	if err := n.deliverer.EnsureStream(ctx); err != nil {
		return false, fmt.Errorf("failed to declare notification channel: %w", err)
	}
	if n.permissions == nil {
		return false, nil
	}
	granted, err := n.permissions.Granted(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check notification permission: %w", err)
	}
	return granted, nil
}

// Build formats the notification for joke without sending it.
func (n *Notifier) Build(joke models.Joke) *models.Notification {
	return &models.Notification{
		ID:        n.newID(),
		ChannelID: ChannelID,
		Title:     Title,
		Body:      PreviewJoke(joke) + bodySuffix,
		Sound:     true,
		Data:      map[string]string{"type": models.NotificationTypeDailyJoke},
	}
}

// Notify sends one immediate notification about joke. Delivery is best
// effort: the returned error is for logging only.
func (n *Notifier) Notify(ctx context.Context, joke models.Joke) error {
	if !n.enabled {
		return ErrDisabled
	}

	ready, err := n.EnsureReady(ctx)
	if err != nil {
		return err
	}
	if !ready {
		logger.Debug("Skipping notification, permission not granted")
		return ErrPermissionDenied
	}

	msg := n.Build(joke)
	if err := n.deliverer.PublishNotification(ctx, msg); err != nil {
		return err
	}

	logger.Info("New joke notification sent", logger.String("id", msg.ID))
	return nil
}
