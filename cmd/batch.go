package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hydrakit/entitlements/pkg/substore"
)

func newImportLegacyCmd() *cobra.Command {
	var (
		mappingPath string
		batchSize   int
	)

	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import rows from the legacy subscription dump",
		Long:  "Reads the subscription_import table in batches and writes unexpired complimentary subscriptions into subscription_comp. Legacy account IDs are resolved through the mapping file; unmapped rows are skipped.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolve, err := mappingResolver(mappingPath)
			if err != nil {
				return err
			}

			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			migrator := substore.NewMigrator(app.pool,
				substore.WithBatchSize(batchSize),
				substore.WithMigratorLogger(app.log))

			count, err := migrator.ImportLegacy(cmd.Context(), resolve)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d subscriptions\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&mappingPath, "mapping", "", "CSV file of legacy_id,account_id pairs (required)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Rows processed per batch")
	_ = cmd.MarkFlagRequired("mapping")

	return cmd
}

func newMigrateCompedCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "migrate-comped",
		Short: "Move comped subscriptions from the deprecated table into preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			migrator := substore.NewMigrator(app.pool,
				substore.WithBatchSize(batchSize),
				substore.WithMigratorLogger(app.log))

			count, err := migrator.MigrateCompedToPrefs(cmd.Context(), app.prefs)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrated %d comped subscriptions\n", count)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Rows processed per batch")

	return cmd
}

func newReplaceIDsCmd() *cobra.Command {
	var (
		mappingPath string
		batchSize   int
	)

	cmd := &cobra.Command{
		Use:   "replace-ids",
		Short: "Rewrite legacy account IDs on mirrored rows",
		Long:  "Walks mirrored subscription rows that still carry a legacy account ID and rewrites them to local account IDs using the mapping file. Unmapped rows are left untouched for a later run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolve, err := mappingResolver(mappingPath)
			if err != nil {
				return err
			}

			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			migrator := substore.NewMigrator(app.pool,
				substore.WithBatchSize(batchSize),
				substore.WithMigratorLogger(app.log))

			count, err := migrator.ReplaceExternalIDs(cmd.Context(), resolve)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rewrote %d rows\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&mappingPath, "mapping", "", "CSV file of legacy_id,account_id pairs (required)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Rows processed per batch")
	_ = cmd.MarkFlagRequired("mapping")

	return cmd
}

// mappingResolver loads a two-column CSV of legacy_id,account_id pairs and
// returns a resolver over it. Legacy IDs absent from the file resolve to 0,
// which the migrator treats as "skip".
func mappingResolver(path string) (substore.LegacyIDResolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse mapping file %s: %w", path, err)
	}

	mapping := make(map[int64]int64, len(records))
	for i, record := range records {
		legacyID, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mapping file %s line %d: bad legacy ID %q", path, i+1, record[0])
		}
		accountID, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mapping file %s line %d: bad account ID %q", path, i+1, record[1])
		}
		mapping[legacyID] = accountID
	}

	return func(_ context.Context, legacyID int64) (int64, error) {
		return mapping[legacyID], nil
	}, nil
}
