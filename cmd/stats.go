package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show active-subscriber statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			stats, err := app.store.Statistics(cmd.Context())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "active subscribers: %d\n", stats.Active)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "total accounts: %d\n", stats.Total)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "percentage: %.2f%%\n", stats.Percentage)
			return nil
		},
	}
}
