package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/query"
	"github.com/MKhiriev/go-sync-store/internal/service"
	"github.com/MKhiriev/go-sync-store/models"
)

// withStores resolves the configuration, opens the client and runs fn.
// The client is closed when fn returns.
func (o *RootOptions) withStores(cmd *cobra.Command, fn func(ctx context.Context, stores client.Stores) error) error {
	cfg, err := config.GetClientConfig(o.config)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	log := logger.NewClientLogger("syncctl", cfg.Log.File)
	ctx := log.WithContext(cmd.Context())

	stores, err := o.open(ctx, cfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "open client", err)
	}
	defer func() {
		if cerr := stores.Close(); cerr != nil {
			log.Err(cerr).Str("func", "RootOptions.withStores").Msg("failed to close client")
		}
	}()

	log.Debug().Str("command", cmd.Name()).Msg("running command")
	return fn(ctx, stores)
}

// syncStores opens every named collection as a sync store.
func syncStores(stores client.Stores, names []string) ([]service.DataStore, error) {
	out := make([]service.DataStore, 0, len(names))
	for _, name := range names {
		ds, err := stores.Collection(name, models.StoreTypeSync)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open collection %q", name), err)
		}
		out = append(out, ds)
	}
	return out, nil
}

// query builds the query of the --query and --sort flags.
func (o *RootOptions) query() (models.Query, error) {
	filter, err := query.DecodeFilter(o.Query)
	if err != nil {
		return models.Query{}, WrapExitError(ExitCommandError, "invalid --query", err)
	}
	sort, err := query.DecodeSort(o.Sort)
	if err != nil {
		return models.Query{}, WrapExitError(ExitCommandError, "invalid --sort", err)
	}
	return models.Query{Filter: filter, Sort: sort}, nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
