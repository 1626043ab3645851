package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/feichai0017/bookmeta/internal/app"
)

func newStorageCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Object store maintenance",
	}

	var olderThan time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete uploaded objects older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withApp(cmd, opts, func(a *app.App) error {
				threshold := time.Now().Add(-olderThan)
				if err := a.Storage.CleanupBefore(cmd.Context(), threshold); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed objects last modified before %s\n", threshold.Format(time.RFC3339))
				return nil
			})
		},
	}
	cleanup.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "age threshold")
	cmd.AddCommand(cleanup)
	return cmd
}
