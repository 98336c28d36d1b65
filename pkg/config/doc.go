// Package config provides the stubby server configuration.
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. DefaultConfig
//  2. a YAML or JSON file (LoadFromFile), format chosen by extension
//  3. environment variables (ApplyEnv): STUBBY_ADDRESS, STUBBY_LOG_LEVEL,
//     STUBBY_LOG_FORMAT, STUBBY_LOG_FILE
//
// Command-line flags are applied on top by the CLI.
//
// Example file:
//
//	address: 127.0.0.1:8882
//	logLevel: debug
//	drainTimeout: 10s
//	stubs:
//	  - stubs/**/*.yaml
package config
