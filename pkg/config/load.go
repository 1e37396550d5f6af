package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"conduit-hq/conduit/pkg/secrets"
)

// Load reads configuration from a YAML file, resolves ${secret:name}
// references against the environment, applies defaults and environment
// overrides, and validates the result.
//
// The loading sequence is:
//  1. Read and parse YAML
//  2. Resolve ${secret:name} references
//  3. Apply default values
//  4. Apply environment variable overrides (CONDUIT_SECTION_FIELD)
//  5. Validate the final configuration
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a configuration from raw YAML bytes. It follows the
// same sequence as Load minus the file read.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveSecrets replaces ${secret:name} references in fields that may
// carry secrets. Only API keys support references today.
func resolveSecrets(cfg *Config) error {
	resolver := &secrets.EnvResolver{}
	ctx := context.Background()
	for i := range cfg.Auth.APIKeys {
		resolved, err := secrets.ResolveReferences(ctx, resolver, cfg.Auth.APIKeys[i].Key)
		if err != nil {
			return fmt.Errorf("auth.api_keys[%d]: %w", i, err)
		}
		cfg.Auth.APIKeys[i].Key = resolved
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Variables
// use the format CONDUIT_SECTION_FIELD and always take precedence over
// file values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CONDUIT_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("CONDUIT_SERVER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if val := os.Getenv("CONDUIT_STORE_PATH"); val != "" {
		cfg.Store.Path = val
	}
	if val := os.Getenv("CONDUIT_VAULT_KEY_ENV"); val != "" {
		cfg.Vault.KeyEnv = val
	}
	if val := os.Getenv("CONDUIT_MONITOR_SCHEDULE"); val != "" {
		cfg.Monitor.Schedule = val
	}
	if val := os.Getenv("CONDUIT_DISPATCH_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Dispatch.UpstreamTimeout = d
		}
	}
	if val := os.Getenv("CONDUIT_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CONDUIT_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
}
