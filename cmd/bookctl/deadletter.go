package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/feichai0017/bookmeta/internal/app"
	"github.com/feichai0017/bookmeta/pkg/deadletter"
)

func newDeadLetterCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletter",
		Aliases: []string{"dl"},
		Short:   "Inspect and replay failed runs",
	}
	cmd.AddCommand(
		newDLListCmd(opts),
		newDLReplayCmd(opts),
		newDLAckCmd(opts),
		newDLDiscardCmd(opts),
	)
	return cmd
}

func newDLListCmd(opts *rootOptions) *cobra.Command {
	var max int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered runs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				entries, err := a.Replayer.List(cmd.Context(), deadletter.ClampMax(max))
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN ID\tBOOK ID\tKEY\tATTEMPTS\tFAILED AT")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						e.RunID, e.Event.BookID, e.Event.Key, len(e.Run.Attempts), e.FailedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&max, "max", deadletter.DefaultDrainMax, "maximum entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full entries as JSON")
	return cmd
}

func newDLReplayCmd(opts *rootOptions) *cobra.Command {
	var max int
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-queue dead-lettered runs with their original events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				report, err := a.Replayer.Replay(cmd.Context(), max)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().IntVar(&max, "max", deadletter.DefaultDrainMax, "maximum entries to replay")
	return cmd
}

func newDLAckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <runId>",
		Short: "Drop a dead-lettered run without touching the book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				if err := a.Replayer.Ack(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "acked %s\n", args[0])
				return nil
			})
		},
	}
}

func newDLDiscardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <runId>",
		Short: "Give up on a run and mark its book failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				if err := a.Replayer.Discard(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "discarded %s\n", args[0])
				return nil
			})
		},
	}
}
