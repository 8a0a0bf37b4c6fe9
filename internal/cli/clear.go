package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <collection>",
		Short: "Drop cached entities and their queued writes",
		Long: `Drop cached entities matching --query together with their queued writes.

The delta-set markers of the collection are forgotten, so the next pull is
a full fetch.`,
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

				n, err := targets[0].ClearCache(ctx, q)
				if err != nil {
					return WrapExitError(ExitFailure, "clear "+args[0], err)
				}
				return rootOpts.output(cmd).Print(
					fmt.Sprintf("%s: cleared %d cached entities", args[0], n),
					map[string]any{"collection": args[0], "cleared": n}, nil)
			})
		},
	}
}
