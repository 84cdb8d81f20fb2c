package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newGrantCmd() *cobra.Command {
	var (
		providerID string
		months     int
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:   "grant <account-name>",
		Short: "Grant a complimentary subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			rec, err := app.grantor.Grant(cmd.Context(), args[0], providerID, months, overwrite)
			if err != nil {
				return err
			}

			expires := "never"
			if rec.Expires != nil {
				expires = rec.Expires.Format(time.DateOnly)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s until %s\n",
				rec.PlanName, args[0], expires)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "comped", "Provider the grant goes through")
	cmd.Flags().IntVar(&months, "months", 1, "Grant duration in months (1-100)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing complimentary subscription")

	return cmd
}

func newCancelCmd() *cobra.Command {
	var providerID string

	cmd := &cobra.Command{
		Use:   "cancel <account-name>",
		Short: "Cancel a complimentary subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.grantor.Cancel(cmd.Context(), args[0], providerID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cancelled complimentary subscription for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "comped", "Provider the cancellation goes through")

	return cmd
}
