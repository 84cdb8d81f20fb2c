package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydrakit/entitlements/pkg/queue"
	"github.com/hydrakit/entitlements/pkg/subscription"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <account>",
		Short: "Re-resolve one account's subscriptions and update the mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			accountID, err := resolveAccount(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}

			if err := app.refresher.Refresh(cmd.Context(), accountID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "refreshed account %d\n", accountID)
			return nil
		},
	}
}

func newRefreshAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "refresh-all",
		Aliases: []string{"queue-refresh"},
		Short:   "Queue a refresh for every mirrored account and process the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			storage := queue.NewMemoryStorage()
			queued, err := enqueueRefreshes(cmd.Context(), app, storage)
			if err != nil {
				return err
			}
			if queued == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no mirrored accounts to refresh")
				return nil
			}

			if err := drainQueue(cmd.Context(), app, storage); err != nil {
				return err
			}

			completed, failed := tallyTasks(storage)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d accounts (%d failed)\n", completed, failed)
			return nil
		},
	}
}

func enqueueRefreshes(ctx context.Context, app *app, storage *queue.MemoryStorage) (int, error) {
	ids, err := app.store.AccountIDs(ctx)
	if err != nil {
		return 0, err
	}

	enqueuer, err := queue.NewEnqueuer(storage)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, id := range ids {
		added, err := enqueuer.Enqueue(ctx, subscription.TaskRefresh, subscription.RefreshTask{AccountID: id})
		if err != nil {
			return queued, fmt.Errorf("enqueue refresh for account %d: %w", id, err)
		}
		if added {
			queued++
		}
	}
	app.log.InfoContext(ctx, "queued subscription refreshes", "accounts", queued)
	return queued, nil
}

// drainQueue runs a worker over the storage until every task reaches a
// terminal state, then stops it.
func drainQueue(ctx context.Context, app *app, storage *queue.MemoryStorage) error {
	worker, err := queue.NewWorker(storage,
		queue.WithPollInterval(100*time.Millisecond),
		queue.WithLogger(app.log))
	if err != nil {
		return err
	}
	if err := worker.Register(subscription.TaskRefresh, refreshHandler(app)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !queueSettled(storage) {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case <-ticker.C:
		}
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func refreshHandler(app *app) queue.HandlerFunc {
	return queue.NewHandler(func(ctx context.Context, task subscription.RefreshTask) error {
		return app.refresher.Refresh(ctx, task.AccountID)
	})
}

// queueSettled reports whether no task can make further progress. Pending
// retries count as in flight.
func queueSettled(storage *queue.MemoryStorage) bool {
	for _, task := range storage.Snapshot() {
		switch task.Status {
		case queue.TaskStatusPending, queue.TaskStatusProcessing:
			return false
		}
	}
	return true
}

func tallyTasks(storage *queue.MemoryStorage) (completed, failed int) {
	for _, task := range storage.Snapshot() {
		switch task.Status {
		case queue.TaskStatusCompleted:
			completed++
		case queue.TaskStatusFailed:
			failed++
		}
	}
	return completed, failed
}

// resolveAccount accepts either a numeric account ID or an account name.
func resolveAccount(ctx context.Context, app *app, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	id, err := app.directory.IDByName(ctx, arg)
	if err != nil {
		return 0, fmt.Errorf("resolve account %q: %w", arg, err)
	}
	return id, nil
}
