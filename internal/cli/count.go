package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
	"github.com/MKhiriev/go-sync-store/models"
)

// CountOptions holds flags for the count command.
type CountOptions struct {
	*RootOptions
	Network bool
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the entities matching --query",
		Long: `Count the entities matching --query.

By default the live entities of the local cache are counted; --network
asks the backend instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				return runCount(ctx, cmd, opts, stores, args[0])
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Network, "network", false, "count on the backend")

	return cmd
}

func runCount(ctx context.Context, cmd *cobra.Command, opts *CountOptions, stores client.Stores, name string) error {
	q, err := opts.query()
	if err != nil {
		return err
	}

	targets, err := syncStores(stores, []string{name})
	if err != nil {
		return err
	}

	policy := models.ForceLocal
	if opts.Network {
		policy = models.ForceNetwork
	}

	n, err := targets[0].Count(ctx, q, policy)
	if err != nil {
		return WrapExitError(ExitFailure, "count "+name, err)
	}

	return opts.output(cmd).Print(fmt.Sprintf("%d", n), map[string]any{
		"collection": name,
		"policy":     policy.String(),
		"count":      n,
	}, nil)
}
