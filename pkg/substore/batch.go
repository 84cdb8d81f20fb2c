package substore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hydrakit/entitlements/pkg/subscription"
)

// LegacyIDResolver maps a legacy cross-system identifier to a current account
// ID. Returning 0 with a nil error marks the identifier as unmapped; such
// rows are skipped, not failed.
type LegacyIDResolver func(ctx context.Context, legacyID int64) (int64, error)

// ReplicationWaiter blocks until replicas have caught up with the primary.
// Batch jobs call it between batches so bulk writes do not outrun
// replication.
type ReplicationWaiter func(ctx context.Context) error

// Migrator runs the one-time batch jobs that move entitlement data between
// schema generations. Every job pages through its source in a stable key
// order with a greater-than-last-key cursor, so it stays correct while the
// table is written to concurrently, and every job is safe to re-run.
type Migrator struct {
	db        DB
	batchSize int
	wait      ReplicationWaiter
	log       *slog.Logger
	now       func() time.Time
}

// MigratorOption configures a Migrator.
type MigratorOption func(*Migrator)

// WithBatchSize sets how many rows each batch processes.
func WithBatchSize(n int) MigratorOption {
	return func(m *Migrator) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithReplicationWaiter sets the between-batch replication barrier.
func WithReplicationWaiter(wait ReplicationWaiter) MigratorOption {
	return func(m *Migrator) {
		if wait != nil {
			m.wait = wait
		}
	}
}

// WithMigratorLogger sets the migrator logger.
func WithMigratorLogger(log *slog.Logger) MigratorOption {
	return func(m *Migrator) {
		if log != nil {
			m.log = log
		}
	}
}

// NewMigrator creates a Migrator with a batch size of 100. Panics if db is
// nil to fail fast during initialization.
func NewMigrator(db DB, opts ...MigratorOption) *Migrator {
	if db == nil {
		panic("substore: DB is required")
	}

	m := &Migrator{
		db:        db,
		batchSize: 100,
		wait:      func(context.Context) error { return nil },
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Migrator) tableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := m.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for table %q: %w", name, err)
	}
	return exists, nil
}

// ImportLegacy copies unexpired rows from the legacy subscription_import
// staging table into subscription_comp, mapping legacy identifiers to
// current account IDs through resolve. Returns the number of imported rows.
// Skips cleanly when the staging table does not exist.
func (m *Migrator) ImportLegacy(ctx context.Context, resolve LegacyIDResolver) (int64, error) {
	exists, err := m.tableExists(ctx, "subscription_import")
	if err != nil {
		return 0, err
	}
	if !exists {
		m.log.InfoContext(ctx, "skipping import, subscription_import table does not exist")
		return 0, nil
	}

	m.log.InfoContext(ctx, "importing subscription_import into subscription_comp")

	var (
		count int64
		last  int64
	)
	for {
		rows, err := m.db.Query(ctx,
			`SELECT user_id, expires FROM subscription_import
			 WHERE expires > $1 AND user_id > $2
			 ORDER BY user_id LIMIT $3`,
			m.now(), last, m.batchSize)
		if err != nil {
			return count, fmt.Errorf("failed to read import batch: %w", err)
		}

		type importRow struct {
			legacyID int64
			expires  time.Time
		}
		var batch []importRow
		for rows.Next() {
			var row importRow
			if err := rows.Scan(&row.legacyID, &row.expires); err != nil {
				rows.Close()
				return count, fmt.Errorf("failed to scan import row: %w", err)
			}
			batch = append(batch, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return count, fmt.Errorf("failed to read import batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			accountID, err := resolve(ctx, row.legacyID)
			if err != nil {
				return count, fmt.Errorf("failed to resolve legacy ID %d: %w", row.legacyID, err)
			}
			if accountID < 1 {
				continue
			}

			if _, err := m.db.Exec(ctx,
				`INSERT INTO subscription_comp (user_id, active, expires)
				 VALUES ($1, TRUE, $2)
				 ON CONFLICT (user_id) DO UPDATE SET active = TRUE, expires = EXCLUDED.expires`,
				accountID, row.expires,
			); err != nil {
				return count, fmt.Errorf("failed to import row for account %d: %w", accountID, err)
			}
			count++
		}

		last = batch[len(batch)-1].legacyID
		m.log.InfoContext(ctx, "import batch complete", "last_user_id", last, "imported", count)
		if err := m.wait(ctx); err != nil {
			return count, fmt.Errorf("replication wait failed: %w", err)
		}
	}

	m.log.InfoContext(ctx, "import complete", "imported", count)
	return count, nil
}

// MigrateCompedToPrefs moves unexpired rows from the deprecated
// subscription_comp table into the per-account preference store, where the
// comped provider now reads them. Returns the number of migrated rows.
// Skips cleanly when the table does not exist.
func (m *Migrator) MigrateCompedToPrefs(ctx context.Context, prefs subscription.PreferenceStore) (int64, error) {
	exists, err := m.tableExists(ctx, "subscription_comp")
	if err != nil {
		return 0, err
	}
	if !exists {
		m.log.InfoContext(ctx, "skipping migration, subscription_comp table does not exist")
		return 0, nil
	}

	m.log.InfoContext(ctx, "migrating subscription_comp into account preferences")

	var (
		count int64
		last  int64
	)
	for {
		rows, err := m.db.Query(ctx,
			`SELECT user_id, expires FROM subscription_comp
			 WHERE expires > $1 AND user_id > $2
			 ORDER BY user_id LIMIT $3`,
			m.now(), last, m.batchSize)
		if err != nil {
			return count, fmt.Errorf("failed to read migration batch: %w", err)
		}

		type compRow struct {
			accountID int64
			expires   time.Time
		}
		var batch []compRow
		for rows.Next() {
			var row compRow
			if err := rows.Scan(&row.accountID, &row.expires); err != nil {
				rows.Close()
				return count, fmt.Errorf("failed to scan migration row: %w", err)
			}
			batch = append(batch, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return count, fmt.Errorf("failed to read migration batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			expires := strconv.FormatInt(row.expires.Unix(), 10)
			if err := prefs.Set(ctx, row.accountID, subscription.DefaultCompedExpiryKey, expires); err != nil {
				return count, fmt.Errorf("failed to store expiry for account %d: %w", row.accountID, err)
			}
			count++
		}

		last = batch[len(batch)-1].accountID
		m.log.InfoContext(ctx, "migration batch complete", "last_account_id", last, "migrated", count)
		if err := m.wait(ctx); err != nil {
			return count, fmt.Errorf("replication wait failed: %w", err)
		}
	}

	m.log.InfoContext(ctx, "migration complete", "migrated", count)
	return count, nil
}

// ReplaceExternalIDs rewrites mirrored rows still keyed by a deprecated
// cross-system identifier, replacing it with the current account ID through
// resolve. Unmapped rows are left in place for a later run. Returns the
// number of rewritten rows.
func (m *Migrator) ReplaceExternalIDs(ctx context.Context, resolve LegacyIDResolver) (int64, error) {
	m.log.InfoContext(ctx, "replacing legacy IDs in subscription rows")

	var (
		count int64
		last  int64
	)
	for {
		rows, err := m.db.Query(ctx,
			`SELECT sid, legacy_id FROM subscription
			 WHERE legacy_id IS NOT NULL AND sid > $1
			 ORDER BY sid LIMIT $2`,
			last, m.batchSize)
		if err != nil {
			return count, fmt.Errorf("failed to read legacy ID batch: %w", err)
		}

		type legacyRow struct {
			sid      int64
			legacyID int64
		}
		var batch []legacyRow
		for rows.Next() {
			var row legacyRow
			if err := rows.Scan(&row.sid, &row.legacyID); err != nil {
				rows.Close()
				return count, fmt.Errorf("failed to scan legacy ID row: %w", err)
			}
			batch = append(batch, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return count, fmt.Errorf("failed to read legacy ID batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			accountID, err := resolve(ctx, row.legacyID)
			if err != nil {
				return count, fmt.Errorf("failed to resolve legacy ID %d: %w", row.legacyID, err)
			}
			if accountID < 1 {
				continue
			}

			if _, err := m.db.Exec(ctx,
				`UPDATE subscription SET account_id = $1, legacy_id = NULL WHERE sid = $2`,
				accountID, row.sid,
			); err != nil {
				return count, fmt.Errorf("failed to rewrite row %d: %w", row.sid, err)
			}
			count++
		}

		last = batch[len(batch)-1].sid
		m.log.InfoContext(ctx, "legacy ID batch complete", "last_sid", last, "replaced", count)
		if err := m.wait(ctx); err != nil {
			return count, fmt.Errorf("replication wait failed: %w", err)
		}
	}

	m.log.InfoContext(ctx, "legacy ID replacement complete", "replaced", count)
	return count, nil
}
