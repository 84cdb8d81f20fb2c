package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "entitlements",
		Short:         "Subscription resolution and caching toolkit",
		Long:          "entitlements resolves account subscriptions across configured providers, mirrors them into Postgres, and runs the maintenance jobs that keep the mirror fresh.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newMigrateCmd(),
		newRefreshCmd(),
		newRefreshAllCmd(),
		newWorkerCmd(),
		newStatsCmd(),
		newSearchCmd(),
		newGrantCmd(),
		newCancelCmd(),
		newImportLegacyCmd(),
		newMigrateCompedCmd(),
		newReplaceIDsCmd(),
	)

	return rootCmd
}
