package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
)

// PullOptions holds flags for the pull command.
type PullOptions struct {
	*RootOptions
	Skip  int
	Limit int
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PullOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull <collection>",
		Short: "Fetch remote changes into the local cache",
		Long: `Fetch remote changes into the local cache.

Unpaged pulls use the delta set of the query when one is remembered and
delta sets are enabled. With --skip or --limit exactly that window is
fetched and no marker is kept.

Example:
  syncctl pull books --query '{"author":"Tolstoy"}' --delta-set`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runPull(ctx, cmd, opts, stores, args[0])
			})
		},
	}

	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "number of leading results to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of results (0 = unlimited)")

	return cmd
}

func runPull(ctx context.Context, cmd *cobra.Command, opts *PullOptions, stores client.Stores, name string) error {
	q, err := opts.query()
	if err != nil {
		return err
	}
	q = q.WithSkip(opts.Skip).WithLimit(opts.Limit)

	targets, err := syncStores(stores, []string{name})
	if err != nil {
		return err
	}

	entities, err := targets[0].Pull(ctx, q)
	if err != nil {
		return WrapExitError(ExitFailure, "pull "+name, err)
	}

	return opts.output(cmd).Print(fmt.Sprintf("%s: %d entities", name, len(entities)), entities, nil)
}
