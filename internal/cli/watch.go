package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
	"github.com/MKhiriev/go-sync-store/internal/tui"
	"github.com/MKhiriev/go-sync-store/internal/workers"
	"github.com/MKhiriev/go-sync-store/models"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <collection>...",
		Short: "Sync collections periodically until interrupted",
		Long: `Sync collections every --sync-interval until interrupted.

Each sync is reported on its own line. Failures are reported and retried
on the next tick.

Example:
  syncctl watch books authors --sync-interval 30s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return rootOpts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runWatch(ctx, cmd, rootOpts, stores, args)
			})
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *RootOptions, stores client.Stores, names []string) error {
	q, err := opts.query()
	if err != nil {
		return err
	}
	if _, err = syncStores(stores, names); err != nil {
		return err
	}

	out := opts.output(cmd)
	var mu sync.Mutex
	report := func(collection string, res models.SyncResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		data := syncReport{
			Collection: collection,
			Pushed:     res.Push.SuccessCount,
			Failed:     len(res.Push.Errors),
			Pending:    res.PendingCount,
			Pulled:     res.Pulled,
			Entities:   len(res.Entities),
		}
		if err != nil {
			data.Error = err.Error()
		}
		_ = out.Print(tui.RenderSyncResult(collection, res, err), data, err)
	}

	if err = stores.StartSync(ctx, workers.WithQuery(q), workers.WithResultHandler(report)); err != nil {
		return WrapExitError(ExitCommandError, "start sync", err)
	}

	<-ctx.Done()
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "watch stopped")
	return nil
}
