// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// go-sync-store client. It aggregates all sub-configurations and is populated
// by merging values from command-line flags, environment variables, an
// optional JSON/YAML file and built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Adapter holds the remote collection store endpoint and request settings.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage holds configuration for the embedded local cache.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds the reconciliation and push policies.
	Sync Sync `envPrefix:"SYNC_"`

	// Workers holds configuration for background worker processes.
	Workers Workers `envPrefix:"WORKERS_"`

	// Log holds logging destinations.
	Log Log `envPrefix:"LOG_"`

	// ConfigFilePath is the optional path to a JSON or YAML configuration
	// file, selected by extension. Populated via the CONFIG environment
	// variable or the --config flag.
	ConfigFilePath string `env:"CONFIG"`
}

// Adapter holds settings of the HTTP transport to the remote store.
type Adapter struct {
	// HTTPAddress is the base URL of the remote collection store
	// (e.g. "https://api.example.com"). A missing scheme defaults to http.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds every outbound request (e.g. "30s").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// AppKey identifies the application to the backend.
	// Env: ADAPTER_APP_KEY
	AppKey string `env:"APP_KEY"`

	// AuthToken is sent as a bearer token when non-empty.
	// Env: ADAPTER_AUTH_TOKEN
	AuthToken string `env:"AUTH_TOKEN"`
}

// Storage groups the configuration for the local cache.
type Storage struct {
	// DB holds the embedded database settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the embedded SQLite cache.
type DB struct {
	// DSN is the SQLite file path or URI (e.g. "file:cache.db?_fk=1").
	// Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// DeltaUnconfiguredPolicy decides what happens after the backend reports
// that delta sets are not configured for a collection.
type DeltaUnconfiguredPolicy string

const (
	// DeltaUnconfiguredRetry falls back to a full fetch for the current call
	// and attempts a delta fetch again on the next one.
	DeltaUnconfiguredRetry DeltaUnconfiguredPolicy = "retry"
	// DeltaUnconfiguredRemember stops attempting delta fetches for the
	// collection for the lifetime of the store.
	DeltaUnconfiguredRemember DeltaUnconfiguredPolicy = "remember"
)

// PushFailurePolicy decides whether Sync pulls after a partially failed push.
type PushFailurePolicy string

const (
	// SyncAbortOnPushError skips the pull when any pushed item failed.
	SyncAbortOnPushError PushFailurePolicy = "abort"
	// SyncAlwaysPull pulls regardless of push failures.
	SyncAlwaysPull PushFailurePolicy = "always-pull"
)

// Sync holds the reconciliation policies shared by every collection store.
type Sync struct {
	// DeltaSetEnabled turns on incremental delta fetches.
	// Env: SYNC_DELTA_SET
	DeltaSetEnabled bool `env:"DELTA_SET"`

	// AutoPagination splits full fetches into PageSize requests.
	// Env: SYNC_AUTO_PAGINATION
	AutoPagination bool `env:"AUTO_PAGINATION"`

	// PageSize is the number of entities requested per auto-paginated page.
	// Env: SYNC_PAGE_SIZE
	PageSize int `env:"PAGE_SIZE"`

	// TTL is the freshness window stamped on fetched entities; 0 disables it.
	// Env: SYNC_TTL
	TTL time.Duration `env:"TTL"`

	// DeltaUnconfigured selects the [DeltaUnconfiguredPolicy].
	// Env: SYNC_DELTA_UNCONFIGURED_POLICY
	DeltaUnconfigured DeltaUnconfiguredPolicy `env:"DELTA_UNCONFIGURED_POLICY"`

	// PushFailure selects the [PushFailurePolicy].
	// Env: SYNC_PUSH_FAILURE_POLICY
	PushFailure PushFailurePolicy `env:"PUSH_FAILURE_POLICY"`
}

// Workers holds configuration for background worker processes.
type Workers struct {
	// SyncInterval is the period of the background sync worker.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// Log holds logging destinations.
type Log struct {
	// File is the path of the rotated client log file. Empty places a "logs"
	// file next to the executable.
	// Env: LOG_FILE
	File string `env:"FILE"`
}

// Defaults applied for every field left empty by all other sources.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultPageSize       = 100
	DefaultSyncInterval   = 5 * time.Minute
	DefaultDSN            = "sync-store.db"
)

// defaults returns the lowest-priority configuration source.
func defaults() *StructuredConfig {
	return &StructuredConfig{
		Adapter: Adapter{RequestTimeout: DefaultRequestTimeout},
		Storage: Storage{DB: DB{DSN: DefaultDSN}},
		Sync: Sync{
			PageSize:          DefaultPageSize,
			DeltaUnconfigured: DeltaUnconfiguredRetry,
			PushFailure:       SyncAbortOnPushError,
		},
		Workers: Workers{SyncInterval: DefaultSyncInterval},
	}
}

// GetStructuredConfig loads and merges the configuration from all available
// sources. For every field the first non-zero value wins, in this order:
//  1. Command-line flags (flagCfg, may be nil)
//  2. Environment variables
//  3. JSON or YAML file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load.
func GetStructuredConfig(flagCfg *StructuredConfig) (*StructuredConfig, error) {
	return newConfigBuilder().
		withFlags(flagCfg).
		withEnv().
		withFile().
		withDefaults().
		build()
}
