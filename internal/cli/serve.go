package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papa-puns/internal/background"
	"papa-puns/internal/bot"
	"papa-puns/internal/controller"
	"papa-puns/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background refresh, notification delivery and the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, nil, true)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Starting papa-puns",
		logger.String("app", a.cfg.App.Name),
		logger.String("environment", a.cfg.App.Environment),
		logger.String("store", string(a.cfg.Store.Driver)),
	)

	sched := a.scheduler()
	registered, err := sched.Register(ctx, background.OptionsFromConfig(a.cfg.Background))
	if err != nil {
		logger.Error("Failed to register background task", logger.Err(err))
	}
	if registered {
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Background scheduler error", logger.Err(err))
			}
		}()
	}

	var telegramBot *bot.Bot
	if a.cfg.Bot.Enabled {
		var source bot.NotificationSource
		if a.queue != nil {
			source = a.queue
		}
		telegramBot, err = bot.New(a.cfg.Bot, a.subs, source, func() *controller.Controller {
			return controller.New(a.policy)
		})
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		if err := telegramBot.Start(ctx); err != nil {
			return fmt.Errorf("failed to start bot: %w", err)
		}
		logger.Info("Telegram bot started")
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Health.Port),
		Handler: healthHandler(a.cfg.Health.Endpoint, sched),
	}

	go func() {
		logger.Info("Health server starting",
			logger.Int("port", a.cfg.Health.Port),
		)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", logger.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if telegramBot != nil {
		telegramBot.Stop()
	}

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping background task", logger.Err(err))
	}

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", logger.Err(err))
	}

	logger.Info("Stopped gracefully")
	return nil
}

type healthStatus struct {
	Status      string     `json:"status"`
	Background  string     `json:"background"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastRun     *time.Time `json:"last_run,omitempty"`
}

func healthHandler(endpoint string, sched *background.Scheduler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		outcome, at := sched.LastRun()
		status := healthStatus{
			Status:      "OK",
			Background:  sched.Status().String(),
			LastOutcome: string(outcome),
		}
		if !at.IsZero() {
			status.LastRun = &at
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	})
	return mux
}
