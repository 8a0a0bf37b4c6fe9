package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers the configuration flags on fs and returns the config
// value they populate once fs has been parsed. Flags left unset keep zero
// values and therefore never override lower-priority sources.
//
// Flags:
//
//	--address          remote store base URL
//	--request-timeout  request timeout (e.g., "30s", "1m")
//	--app-key          application key sent to the backend
//	--auth-token       bearer token
//	--dsn              local SQLite cache DSN
//	--delta-set        enable delta-set fetches
//	--auto-paginate    split full fetches into pages
//	--page-size        entities per auto-paginated page
//	--ttl              freshness window of fetched entities
//	--delta-unconfigured-policy  "retry" or "remember"
//	--push-failure-policy        "abort" or "always-pull"
//	--sync-interval    background sync period
//	--log-file         client log file path
//	-c/--config        JSON or YAML config file path
func BindFlags(fs *pflag.FlagSet) *StructuredConfig {
	cfg := &StructuredConfig{}

	fs.StringVar(&cfg.Adapter.HTTPAddress, "address", "", "Remote store base URL")
	fs.DurationVar(&cfg.Adapter.RequestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.StringVar(&cfg.Adapter.AppKey, "app-key", "", "Application key")
	fs.StringVar(&cfg.Adapter.AuthToken, "auth-token", "", "Bearer token")

	fs.StringVar(&cfg.Storage.DB.DSN, "dsn", "", "Local cache DSN")

	fs.BoolVar(&cfg.Sync.DeltaSetEnabled, "delta-set", false, "Enable delta-set fetches")
	fs.BoolVar(&cfg.Sync.AutoPagination, "auto-paginate", false, "Split full fetches into pages")
	fs.IntVar(&cfg.Sync.PageSize, "page-size", 0, "Entities per auto-paginated page")
	fs.DurationVar(&cfg.Sync.TTL, "ttl", 0, "Freshness window of fetched entities")
	fs.StringVar((*string)(&cfg.Sync.DeltaUnconfigured), "delta-unconfigured-policy", "",
		`Behaviour when delta sets are unconfigured: "retry" or "remember"`)
	fs.StringVar((*string)(&cfg.Sync.PushFailure), "push-failure-policy", "",
		`Sync behaviour after push errors: "abort" or "always-pull"`)

	fs.DurationVar(&cfg.Workers.SyncInterval, "sync-interval", 0, "Background sync period")
	fs.StringVar(&cfg.Log.File, "log-file", "", "Client log file path")

	fs.StringVarP(&cfg.ConfigFilePath, "config", "c", "", "JSON or YAML config file path")

	return cfg
}
