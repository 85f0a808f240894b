package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"papa-puns/internal/config"
	"papa-puns/internal/models"
	"papa-puns/pkg/logger"

	"github.com/nats-io/nats.go"
)

const (
	NotificationSubject = "notifications.joke"
	ConsumerGroup       = "papa-puns"
)

type NATS struct {
	conn      *nats.Conn
	jetstream nats.JetStreamContext
	cfg       config.NATSConfig
}

func New(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name(ConsumerGroup))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream: %w", err)
	}

	return &NATS{
		conn:      conn,
		jetstream: js,
		cfg:       cfg,
	}, nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// EnsureStream declares the notification stream if it does not exist yet.
func (n *NATS) EnsureStream(ctx context.Context) error {
	_, err := n.jetstream.StreamInfo(n.cfg.StreamName, nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", n.cfg.StreamName, err)
	}

	_, err = n.jetstream.AddStream(&nats.StreamConfig{
		Name:       n.cfg.StreamName,
		Subjects:   []string{NotificationSubject},
		Retention:  nats.WorkQueuePolicy,
		MaxAge:     24 * time.Hour,
		Duplicates: time.Hour,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", n.cfg.StreamName, err)
	}

	logger.Info("Created notification stream", logger.String("stream", n.cfg.StreamName))
	return nil
}

func (n *NATS) PublishNotification(ctx context.Context, msg *models.Notification) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = n.jetstream.Publish(NotificationSubject, data, nats.Context(ctx), nats.MsgId(msg.ID))
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	logger.Debug("Notification published to queue", logger.String("id", msg.ID))
	return nil
}

func (n *NATS) ConsumeNotifications(ctx context.Context, handler func(*models.Notification) error) error {
	sub, err := n.jetstream.PullSubscribe(
		NotificationSubject,
		ConsumerGroup,
		nats.BindStream(n.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(10, nats.MaxWait(500*time.Millisecond))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				return fmt.Errorf("failed to fetch messages: %w", err)
			}

			for _, msg := range msgs {
				handleMessage(msg.Data, handler, msg.Ack, msg.Nak)
			}
		}
	}
}

// handleMessage decodes one payload and acks or naks it. Undecodable
// payloads are acked so they do not come back.
func handleMessage(data []byte, handler func(*models.Notification) error, ack, nak func(...nats.AckOpt) error) {
	var notification models.Notification
	if err := json.Unmarshal(data, &notification); err != nil {
		logger.Error("Failed to unmarshal notification", logger.Err(err))
		ack()
		return
	}

	if err := handler(&notification); err != nil {
		logger.Error("Failed to deliver notification",
			logger.String("id", notification.ID),
			logger.Err(err),
		)
		nak()
		return
	}

	ack()
}
