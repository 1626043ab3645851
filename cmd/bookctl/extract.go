package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feichai0017/bookmeta/internal/app"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var owner, strategy string

	cmd := &cobra.Command{
		Use:   "extract <bookId>",
		Short: "Queue a manual extraction run for a book",
		Example: `  bookctl extract 6f1c... --strategy accuracy-first
  bookctl extract 6f1c... --owner user-42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				bookID := args[0]
				if owner == "" {
					rec, err := a.Books.Get(cmd.Context(), bookID)
					if err != nil {
						return err
					}
					owner = rec.OwnerID
				}
				acc, err := a.Intake.RequestExtraction(cmd.Context(), bookID, owner, strategy)
				if err != nil {
					return fmt.Errorf("failed to queue extraction: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), acc)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id to act as (defaults to the record's owner)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "cost-optimized, best-effort or accuracy-first")
	return cmd
}

func newTaskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "task <eventId>",
		Short: "Show the queue state of an event's task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				st, err := a.Queue.Status(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <bookId>",
		Short: "Show the last run status of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				st, ok, err := a.Status.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no run recorded for book %s in the last day", args[0])
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}
