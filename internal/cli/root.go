// Package cli implements the papa-puns command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"papa-puns/internal/config"

	"github.com/spf13/cobra"
)

var (
	logLevel    string
	storeDriver string
	storePath   string
)

var rootCmd = &cobra.Command{
	Use:           "papa-puns",
	Short:         "One dad joke a day",
	Long:          `Fetches a dad joke once per day, keeps it cached, refreshes it in the background and announces new jokes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override APP_LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Override STORE_DRIVER (postgres, sqlite, file, memory)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store-path", "", "Override STORE_PATH")
}

func reportError(err error) {
	switch {
	case errors.Is(err, config.ErrEmptyBaseURL):
		fmt.Fprintln(os.Stderr, "Error: JOKE_API_URL environment variable is required")
	case errors.Is(err, config.ErrEmptyBotToken):
		fmt.Fprintln(os.Stderr, "Error: BOT_TOKEN environment variable is required when BOT_ENABLED=true")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
