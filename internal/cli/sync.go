package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
	"github.com/MKhiriev/go-sync-store/internal/tui"
)

type syncReport struct {
	Collection string `json:"collection"`
	Pushed     int    `json:"pushed"`
	Failed     int    `json:"failed"`
	Pending    int    `json:"pending"`
	Pulled     bool   `json:"pulled"`
	Entities   int    `json:"entities"`
	Error      string `json:"error,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <collection>...",
		Short: "Push queued writes, then pull remote changes",
		Long: `Push queued writes, then pull remote changes.

With --push-failure-policy=abort (the default) a collection whose push
failed is not pulled.

Example:
  syncctl sync books authors --push-failure-policy always-pull`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runSync(ctx, cmd, rootOpts, stores, args)
			})
		},
	}
}

func runSync(ctx context.Context, cmd *cobra.Command, opts *RootOptions, stores client.Stores, names []string) error {
	q, err := opts.query()
	if err != nil {
		return err
	}

	targets, err := syncStores(stores, names)
	if err != nil {
		return err
	}

	var (
		reports []syncReport
		lines   []string
		failed  int
	)
	for _, ds := range targets {
		res, err := ds.Sync(ctx, q)

		report := syncReport{
			Collection: ds.Collection(),
			Pushed:     res.Push.SuccessCount,
			Failed:     len(res.Push.Errors),
			Pending:    res.PendingCount,
			Pulled:     res.Pulled,
			Entities:   len(res.Entities),
		}
		if err != nil {
			report.Error = err.Error()
			failed++
		}
		reports = append(reports, report)
		lines = append(lines, tui.RenderSyncResult(ds.Collection(), res, err))
	}

	var failure error
	if failed > 0 {
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d collection(s) failed to sync", failed))
	}
	if err = opts.output(cmd).Print(strings.Join(lines, "\n"), reports, failure); err != nil {
		return err
	}
	return failure
}
