package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags_AllFlags(t *testing.T) {
	// Arrange
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := BindFlags(fs)

	// Act
	err := fs.Parse([]string{
		"--address", "https://api.example.com",
		"--request-timeout", "10s",
		"--app-key", "kid_app",
		"--auth-token", "token",
		"--dsn", "cache.db",
		"--delta-set",
		"--auto-paginate",
		"--page-size", "25",
		"--ttl", "30m",
		"--delta-unconfigured-policy", "remember",
		"--push-failure-policy", "always-pull",
		"--sync-interval", "45s",
		"--log-file", "sync.log",
		"-c", "config.yaml",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.Adapter.HTTPAddress)
	assert.Equal(t, 10*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, "kid_app", cfg.Adapter.AppKey)
	assert.Equal(t, "token", cfg.Adapter.AuthToken)
	assert.Equal(t, "cache.db", cfg.Storage.DB.DSN)
	assert.True(t, cfg.Sync.DeltaSetEnabled)
	assert.True(t, cfg.Sync.AutoPagination)
	assert.Equal(t, 25, cfg.Sync.PageSize)
	assert.Equal(t, 30*time.Minute, cfg.Sync.TTL)
	assert.Equal(t, DeltaUnconfiguredRemember, cfg.Sync.DeltaUnconfigured)
	assert.Equal(t, SyncAlwaysPull, cfg.Sync.PushFailure)
	assert.Equal(t, 45*time.Second, cfg.Workers.SyncInterval)
	assert.Equal(t, "sync.log", cfg.Log.File)
	assert.Equal(t, "config.yaml", cfg.ConfigFilePath)
}

func TestBindFlags_UnsetFlagsStayZero(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := BindFlags(fs)

	require.NoError(t, fs.Parse(nil))
	assert.Equal(t, &StructuredConfig{}, cfg)
}

func TestBindFlags_InvalidDuration(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)

	assert.Error(t, fs.Parse([]string{"--ttl", "soon"}))
}
