package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"papa-puns/internal/config"
	"papa-puns/internal/controller"
	"papa-puns/internal/models"
	"papa-puns/pkg/logger"

	"gopkg.in/telebot.v4"
)

const (
	errorText   = "An error occurred. Please try again."
	loadingText = "Loading joke..."
)

var ErrNoToken = errors.New("telegram bot token is required")

type Subscriptions interface {
	Add(ctx context.Context, chatID int64) (bool, error)
	Remove(ctx context.Context, chatID int64) (bool, error)
	List(ctx context.Context) ([]int64, error)
}

type NotificationSource interface {
	ConsumeNotifications(ctx context.Context, handler func(*models.Notification) error) error
}

type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// ControllerFactory builds a fresh controller for one chat.
type ControllerFactory func() *controller.Controller

type Bot struct {
	cfg           config.BotConfig
	subs          Subscriptions
	q             NotificationSource
	newController ControllerFactory

	tbot   *telebot.Bot
	sender sender
}

func New(cfg config.BotConfig, subs Subscriptions, q NotificationSource, newController ControllerFactory) (*Bot, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	return &Bot{
		cfg:           cfg,
		subs:          subs,
		q:             q,
		newController: newController,
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	tbot, err := telebot.NewBot(telebot.Settings{
		Token:  b.cfg.Token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	b.tbot = tbot
	b.sender = tbot
	b.setupHandlers(tbot)

	if b.q != nil {
		go func() {
			err := b.q.ConsumeNotifications(ctx, b.Deliver)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Notification consumer error", logger.Err(err))
			}
		}()
	}

	go tbot.Start()

	return nil
}

func (b *Bot) Stop() {
	if b.tbot != nil {
		b.tbot.Stop()
	}
}

func (b *Bot) setupHandlers(bot *telebot.Bot) {
	bot.Handle("/start", b.handleStart)
	bot.Handle("/joke", b.handleJoke)
	bot.Handle("/refresh", b.handleRefresh)
	bot.Handle("/subscribe", b.handleSubscribe)
	bot.Handle("/unsubscribe", b.handleUnsubscribe)
	bot.Handle("/help", b.handleHelp)

	bot.Handle(telebot.OnText, func(c telebot.Context) error {
		logger.Info("Incoming text message",
			logger.Int64("chat_id", c.Chat().ID),
			logger.String("username", c.Sender().Username),
		)
		return c.Send("Use /joke to get today's joke!")
	})
}

// show renders one joke request. Each request is its own view: the
// controller lives only until the reply text is ready.
func (b *Bot) show(ctx context.Context, refresh bool) string {
	c := b.newController()
	defer c.Close()

	if refresh {
		return Render(c.Refresh(ctx))
	}
	return Render(c.Mount(ctx))
}

func (b *Bot) handleStart(c telebot.Context) error {
	ctx := context.Background()
	if _, err := b.subs.Add(ctx, c.Chat().ID); err != nil {
		logger.Error("Failed to save subscriber", logger.Err(err))
	}

	welcome := "*Welcome to Papa Puns!*\n\n" +
		"One dad joke a day. I'll let you know when a new one is ready.\n\n" +
		helpCommands

	if err := c.Send(welcome, telebot.ModeMarkdown); err != nil {
		return err
	}
	return b.handleJoke(c)
}

func (b *Bot) handleJoke(c telebot.Context) error {
	return c.Send(b.show(context.Background(), false))
}

func (b *Bot) handleRefresh(c telebot.Context) error {
	return c.Send(b.show(context.Background(), true))
}

func (b *Bot) handleSubscribe(c telebot.Context) error {
	added, err := b.subs.Add(context.Background(), c.Chat().ID)
	if err != nil {
		logger.Error("Failed to save subscriber", logger.Err(err))
		return c.Send(errorText)
	}
	if !added {
		return c.Send("You are already subscribed to new joke alerts.")
	}
	return c.Send("You will be notified when a new joke is ready.")
}

func (b *Bot) handleUnsubscribe(c telebot.Context) error {
	removed, err := b.subs.Remove(context.Background(), c.Chat().ID)
	if err != nil {
		logger.Error("Failed to remove subscriber", logger.Err(err))
		return c.Send(errorText)
	}
	if !removed {
		return c.Send("You are not subscribed.")
	}
	return c.Send("New joke alerts turned off.")
}

const helpCommands = "Commands:\n" +
	"- /joke - Today's joke\n" +
	"- /refresh - Get a new joke right now\n" +
	"- /subscribe - Get notified about new jokes\n" +
	"- /unsubscribe - Stop notifications\n" +
	"- /help - Show this help message"

func (b *Bot) handleHelp(c telebot.Context) error {
	return c.Send("*Help*\n\n"+helpCommands, telebot.ModeMarkdown)
}

// Render turns a view state into the message shown to the user.
func Render(v controller.View) string {
	switch v.State {
	case models.StateSuccess:
		if text, ok := v.Text(); ok {
			return text
		}
		return errorText
	case models.StateError:
		return errorText
	default:
		return loadingText
	}
}

// Deliver sends a notification to every subscriber. It fails only when
// no subscriber could be reached.
func (b *Bot) Deliver(n *models.Notification) error {
	if b.sender == nil {
		return errors.New("bot is not started")
	}

	ids, err := b.subs.List(context.Background())
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%s\n\n%s", n.Title, n.Body)
	opts := &telebot.SendOptions{DisableNotification: !n.Sound}

	var errs []error
	for _, id := range ids {
		if _, err := b.sender.Send(&telebot.Chat{ID: id}, text, opts); err != nil {
			logger.Warn("Failed to notify subscriber", logger.Int64("chat_id", id), logger.Err(err))
			errs = append(errs, err)
		}
	}

	if len(ids) > 0 && len(errs) == len(ids) {
		return errors.Join(errs...)
	}
	return nil
}
