package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
)

type pushReport struct {
	Collection string   `json:"collection"`
	Pushed     int      `json:"pushed"`
	Failed     []string `json:"failed,omitempty"`
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <collection>...",
		Short: "Send queued local writes to the backend",
		Long: `Send queued local writes to the backend.

Items that fail stay queued and are reported; the command then exits with
status 1.

Example:
  syncctl push books authors`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runPush(ctx, cmd, rootOpts, stores, args)
			})
		},
	}
}

func runPush(ctx context.Context, cmd *cobra.Command, opts *RootOptions, stores client.Stores, names []string) error {
	targets, err := syncStores(stores, names)
	if err != nil {
		return err
	}

	var (
		reports []pushReport
		lines   []string
		failed  int
	)
	for _, ds := range targets {
		res, err := ds.Push(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "push "+ds.Collection(), err)
		}

		report := pushReport{Collection: ds.Collection(), Pushed: res.SuccessCount}
		lines = append(lines, fmt.Sprintf("%s: pushed %d, failed %d", ds.Collection(), res.SuccessCount, len(res.Errors)))
		for _, pushErr := range res.Errors {
			report.Failed = append(report.Failed, pushErr.Error())
			lines = append(lines, "  "+pushErr.Error())
		}
		failed += len(res.Errors)
		reports = append(reports, report)
	}

	var failure error
	if failed > 0 {
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d operation(s) failed to push", failed))
	}
	if err = opts.output(cmd).Print(strings.Join(lines, "\n"), reports, failure); err != nil {
		return err
	}
	return failure
}
