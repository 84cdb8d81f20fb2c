package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydrakit/entitlements/pkg/queue"
	"github.com/hydrakit/entitlements/pkg/subscription"
)

func newWorkerCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background refresh daemon",
		Long:  "Periodically queues a refresh for every mirrored account and processes the queue. The enqueuer de-duplicates, so a slow provider never piles up repeat work for the same account.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			storage := queue.NewMemoryStorage()
			worker, err := queue.NewWorker(storage,
				queue.WithPollInterval(time.Second),
				queue.WithLogger(app.log))
			if err != nil {
				return err
			}
			if err := worker.Register(subscription.TaskRefresh, refreshHandler(app)); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go scheduleRefreshes(ctx, app, storage, interval)

			app.log.InfoContext(ctx, "refresh worker started", "interval", interval)
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "How often every mirrored account is re-queued")

	return cmd
}

// scheduleRefreshes enqueues a refresh for every mirrored account once per
// interval, starting immediately.
func scheduleRefreshes(ctx context.Context, app *app, storage *queue.MemoryStorage, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		storage.PruneTerminal()
		if _, err := enqueueRefreshes(ctx, app, storage); err != nil {
			app.log.ErrorContext(ctx, "failed to queue refreshes", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
