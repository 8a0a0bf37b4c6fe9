package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors [StructuredConfig] for JSON and YAML files.
type fileConfig struct {
	Adapter struct {
		HTTPAddress    string   `json:"http_address" yaml:"http_address"`
		RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`
		AppKey         string   `json:"app_key" yaml:"app_key"`
		AuthToken      string   `json:"auth_token" yaml:"auth_token"`
	} `json:"adapter,omitempty" yaml:"adapter,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn" yaml:"dsn"`
		} `json:"db,omitempty" yaml:"db,omitempty"`
	} `json:"storage,omitempty" yaml:"storage,omitempty"`

	Sync struct {
		DeltaSetEnabled   bool     `json:"delta_set" yaml:"delta_set"`
		AutoPagination    bool     `json:"auto_pagination" yaml:"auto_pagination"`
		PageSize          int      `json:"page_size" yaml:"page_size"`
		TTL               Duration `json:"ttl" yaml:"ttl"`
		DeltaUnconfigured string   `json:"delta_unconfigured_policy" yaml:"delta_unconfigured_policy"`
		PushFailure       string   `json:"push_failure_policy" yaml:"push_failure_policy"`
	} `json:"sync,omitempty" yaml:"sync,omitempty"`

	Workers struct {
		SyncInterval Duration `json:"sync_interval" yaml:"sync_interval"`
	} `json:"workers,omitempty" yaml:"workers,omitempty"`

	Log struct {
		File string `json:"file" yaml:"file"`
	} `json:"log,omitempty" yaml:"log,omitempty"`
}

// parseFile reads a config file. Files ending in .yaml or .yml are decoded
// as YAML, everything else as JSON.
func parseFile(path string) (*StructuredConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading a config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error decoding yaml configs: %w", err)
		}
	default:
		if err = json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error decoding json configs: %w", err)
		}
	}

	cfg := &StructuredConfig{
		Adapter: Adapter{
			HTTPAddress:    fc.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(fc.Adapter.RequestTimeout),
			AppKey:         fc.Adapter.AppKey,
			AuthToken:      fc.Adapter.AuthToken,
		},
		Storage: Storage{
			DB: DB{DSN: fc.Storage.DB.DSN},
		},
		Sync: Sync{
			DeltaSetEnabled:   fc.Sync.DeltaSetEnabled,
			AutoPagination:    fc.Sync.AutoPagination,
			PageSize:          fc.Sync.PageSize,
			TTL:               time.Duration(fc.Sync.TTL),
			DeltaUnconfigured: DeltaUnconfiguredPolicy(fc.Sync.DeltaUnconfigured),
			PushFailure:       PushFailurePolicy(fc.Sync.PushFailure),
		},
		Workers: Workers{
			SyncInterval: time.Duration(fc.Workers.SyncInterval),
		},
		Log: Log{File: fc.Log.File},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON and YAML
// unmarshaling from strings like "1h", "30s" as well as raw nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return err
		}
		*d = Duration(time.Duration(n))
		return nil
	}

	tmp, err := time.ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(tmp)
	return nil
}
