package config

import (
	"fmt"
)

// ClientConfig is the validated configuration view consumed by the client
// runtime, assembled from [StructuredConfig].
type ClientConfig struct {
	// Adapter contains the transport endpoint and timeouts.
	Adapter Adapter
	// Storage contains local cache settings.
	Storage Storage
	// Sync contains reconciliation policies.
	Sync Sync
	// Workers contains background job settings.
	Workers Workers
	// Log contains logging destinations.
	Log Log
}

// GetClientConfig builds and validates a client config view from the merged
// structured configuration. flagCfg carries parsed command-line flags and
// may be nil.
func GetClientConfig(flagCfg *StructuredConfig) (*ClientConfig, error) {
	cfg, err := GetStructuredConfig(flagCfg)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		Adapter: cfg.Adapter,
		Storage: cfg.Storage,
		Sync:    cfg.Sync,
		Workers: cfg.Workers,
		Log:     cfg.Log,
	}

	return clientCfg, clientCfg.validate()
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Sync.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidSyncConfigs)
	}
	switch cfg.Sync.DeltaUnconfigured {
	case DeltaUnconfiguredRetry, DeltaUnconfiguredRemember:
	default:
		return fmt.Errorf("%w: unknown delta unconfigured policy %q", ErrInvalidSyncConfigs, cfg.Sync.DeltaUnconfigured)
	}
	switch cfg.Sync.PushFailure {
	case SyncAbortOnPushError, SyncAlwaysPull:
	default:
		return fmt.Errorf("%w: unknown push failure policy %q", ErrInvalidSyncConfigs, cfg.Sync.PushFailure)
	}
	if cfg.Sync.TTL < 0 {
		return fmt.Errorf("%w: ttl must not be negative", ErrInvalidSyncConfigs)
	}

	if cfg.Workers.SyncInterval <= 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
