package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
)

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <collection>",
		Short: "Discard queued writes without sending them",
		Long: `Discard queued writes without sending them.

Without --query the whole backlog of the collection is dropped. Cached
entities are kept as they are.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStores(cmd, func(ctx context.Context, stores client.Stores) error {
				q, err := rootOpts.query()
				if err != nil {
					return err
				}
				targets, err := syncStores(stores, args)
				if err != nil {
					return err
				}

				n, err := targets[0].Purge(ctx, q)
				if err != nil {
					return WrapExitError(ExitFailure, "purge "+args[0], err)
				}
				return rootOpts.output(cmd).Print(
					fmt.Sprintf("%s: purged %d pending operation(s)", args[0], n),
					map[string]any{"collection": args[0], "purged": n}, nil)
			})
		},
	}
}
