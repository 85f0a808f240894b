package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"papa-puns/internal/background"
	"papa-puns/internal/controller"
	"papa-puns/internal/jokeapi"
	"papa-puns/internal/models"
	"papa-puns/internal/notifier"
	"papa-puns/pkg/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errBackgroundFailed = errors.New("background refresh failed")

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's joke, fetching it if the cache is not from today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runView(cmd, false)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch a new joke right now and replace today's cached one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runView(cmd, true)
	},
}

var backgroundCmd = &cobra.Command{
	Use:   "background",
	Short: "Run the background refresh task once and print its outcome",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		sched := a.scheduler()
		if sched.Status() != background.StatusAvailable {
			fmt.Fprintf(cmd.OutOrStdout(), "Background refresh is %s\n", sched.Status())
			return nil
		}

		outcome, _ := sched.RunNow(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), outcome)
		if outcome == models.OutcomeFailed {
			return errBackgroundFailed
		}
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one joke from the joke service without touching the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.InitWithFormat(cfg.App.LogLevel, cfg.App.LogFormat, cmd.ErrOrStderr())

		f, err := jokeapi.New(cfg.Service)
		if err != nil {
			return err
		}
		joke, err := f.Fetch(cmd.Context())
		if err != nil {
			return err
		}

		var out bytes.Buffer
		if err := json.Indent(&out, joke.Bytes(), "", "  "); err != nil {
			return err
		}
		out.WriteByte('\n')
		_, err = out.WriteTo(cmd.OutOrStdout())
		return err
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <text>",
	Short: "Print the notification that would be sent for a joke text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := notifier.New(nil, nil).Build(models.JokeFromText(strings.Join(args, " ")))
		fmt.Fprintln(cmd.OutOrStdout(), msg.Title)
		fmt.Fprintln(cmd.OutOrStdout(), msg.Body)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg.Redacted())
	},
}

func init() {
	rootCmd.AddCommand(todayCmd, refreshCmd, backgroundCmd, fetchCmd, previewCmd, configCmd)
}

func runView(cmd *cobra.Command, force bool) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	c := controller.New(a.policy)
	defer c.Close()

	var v controller.View
	if force {
		v = c.Refresh(ctx)
	} else {
		v = c.Mount(ctx)
	}
	return printView(cmd.OutOrStdout(), cmd.ErrOrStderr(), v)
}

func printView(out, errOut io.Writer, v controller.View) error {
	if v.State == models.StateError {
		return fmt.Errorf("could not load a joke: %w", v.Err)
	}
	text, ok := v.Text()
	if !ok {
		return errors.New("joke has no text")
	}
	if v.Stale {
		fmt.Fprintln(errOut, "Could not reach the joke service, showing the last saved joke.")
	}
	fmt.Fprintln(out, text)
	return nil
}
