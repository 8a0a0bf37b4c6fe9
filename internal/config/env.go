package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// parseEnv fills cfg from the ADAPTER_, STORAGE_, SYNC_, WORKERS_ and LOG_
// variables of the process environment and the CONFIG file path.
func parseEnv(cfg *StructuredConfig) error {
	return parseEnvFrom(cfg, nil)
}

// parseEnvFrom is parseEnv over an explicit environment; a nil environ
// reads the process environment.
func parseEnvFrom(cfg *StructuredConfig, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}

	// policies are matched case-insensitively, as typed in shells and CI
	cfg.Sync.DeltaUnconfigured = DeltaUnconfiguredPolicy(normalizePolicy(string(cfg.Sync.DeltaUnconfigured)))
	cfg.Sync.PushFailure = PushFailurePolicy(normalizePolicy(string(cfg.Sync.PushFailure)))

	return nil
}

func normalizePolicy(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
