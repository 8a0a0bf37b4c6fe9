// Package config provides configuration loading, merging, and validation
// facilities for the sync store client.
//
// Configuration is assembled from multiple sources; for every field the
// first source providing a non-zero value wins:
//  1. Command-line flags (registered with [BindFlags])
//  2. Environment variables
//  3. JSON or YAML config file
//  4. Built-in defaults
//
// The main entry points are [GetStructuredConfig] for the raw merged values
// and [GetClientConfig] for the validated client view.
package config
