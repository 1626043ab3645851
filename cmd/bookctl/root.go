package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/feichai0017/bookmeta/internal/app"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "bookctl",
		Short: "Operate the book metadata extraction pipeline",
		Long: `bookctl talks to the pipeline's Redis, object store and book database
directly. It can queue extractions, inspect queued tasks and manage the
dead-letter channel.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(
		newExtractCmd(opts),
		newTaskCmd(opts),
		newStatusCmd(opts),
		newDeadLetterCmd(opts),
		newStorageCmd(opts),
		newTokenCmd(),
	)
	return cmd
}

// withApp runs fn against a connected App and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app.App) error) error {
	log, err := logger.NewLogger(
		logger.WithLevel(opts.logLevel),
		logger.WithEncoding("console"),
		logger.WithOutputPaths([]string{"stderr"}),
	)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cmd.Context(), log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
