package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hydrakit/entitlements/pkg/pg"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if err := pg.Migrate(cmd.Context(), app.pool, app.pgCfg, app.log); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
