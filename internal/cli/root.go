// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package cli implements the syncctl command tree.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-sync-store/internal/client"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Query  string // filter document, e.g. {"author":"Tolstoy"}
	Sort   string // sort document, e.g. {"title":1}

	config *config.StructuredConfig
	open   openFunc
}

// openFunc builds the stores a command runs against.
type openFunc func(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (client.Stores, error)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of syncctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(func(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (client.Stores, error) {
		return client.New(ctx, cfg, log)
	})
}

func newRootCommand(open openFunc) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Inspect and synchronize the offline cache of go-sync-store",
		Long: `syncctl operates the local cache of go-sync-store collections: it pushes
queued local writes, pulls remote changes by full fetch or delta set and
reports what is still waiting to be synchronized.

Configuration comes from flags, ADAPTER_/STORAGE_/SYNC_ environment
variables and an optional JSON or YAML file, in that order of priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	opts.config = config.BindFlags(flags)
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Query, "query", "q", "", `filter document, e.g. '{"year":{"$gt":1900}}'`)
	flags.StringVar(&opts.Sort, "sort", "", `sort document, e.g. '{"title":1}'`)

	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewDownloadCommand(opts))

	return cmd
}
