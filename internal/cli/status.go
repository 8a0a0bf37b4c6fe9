package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
	"github.com/MKhiriev/go-sync-store/internal/tui"
	"github.com/MKhiriev/go-sync-store/models"
)

type statusReport struct {
	Collection string `json:"collection"`
	Cached     int    `json:"cached"`
	Pending    int    `json:"pending"`
	Error      string `json:"error,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <collection>...",
		Short: "Show cached and pending counts per collection",
		Long: `Show cached and pending counts per collection.

Only the local cache is read; no request is sent to the backend.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runStatus(ctx, cmd, rootOpts, stores, args)
			})
		},
	}
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts *RootOptions, stores client.Stores, names []string) error {
	targets, err := syncStores(stores, names)
	if err != nil {
		return err
	}

	rows := make([]tui.StatusRow, 0, len(targets))
	reports := make([]statusReport, 0, len(targets))
	for _, ds := range targets {
		row := tui.StatusRow{Collection: ds.Collection(), Type: ds.Type()}

		row.Cached, row.Err = ds.Count(ctx, models.NewQuery(), models.ForceLocal)
		if row.Err == nil {
			row.Pending, row.Err = ds.SyncCount(ctx)
		}

		report := statusReport{Collection: row.Collection, Cached: row.Cached, Pending: row.Pending}
		if row.Err != nil {
			report.Error = row.Err.Error()
		}
		rows = append(rows, row)
		reports = append(reports, report)
	}

	return opts.output(cmd).Print(tui.RenderStatus(rows, time.Now()), reports, nil)
}
