package config

import "time"

// boolPtr returns a pointer to b, for optional boolean fields whose
// default is true.
func boolPtr(b bool) *bool { return &b }

// ApplyDefaults fills in default values for any unset configuration
// fields. It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}

	// CORS
	if cfg.Server.CORS.Enabled == nil {
		cfg.Server.CORS.Enabled = boolPtr(true)
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID", "X-API-Key"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = 3600
	}

	// Store
	if cfg.Store.Path == "" {
		cfg.Store.Path = "conduit.db"
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = 10
	}
	if cfg.Store.MaxIdleConns == 0 {
		cfg.Store.MaxIdleConns = 5
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = 5 * time.Second
	}

	// Vault
	if cfg.Vault.KeyEnv == "" {
		cfg.Vault.KeyEnv = "CONDUIT_VAULT_KEY"
	}

	// Auth
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].Enabled == nil {
			cfg.Auth.APIKeys[i].Enabled = boolPtr(true)
		}
	}

	// Monitor
	if cfg.Monitor.Enabled == nil {
		cfg.Monitor.Enabled = boolPtr(true)
	}
	if cfg.Monitor.Schedule == "" {
		cfg.Monitor.Schedule = "@every 60s"
	}
	if cfg.Monitor.Concurrency == 0 {
		cfg.Monitor.Concurrency = 8
	}
	if cfg.Monitor.ProbeTimeout == 0 {
		cfg.Monitor.ProbeTimeout = 10 * time.Second
	}

	// Retention
	if cfg.Retention.Window == 0 {
		cfg.Retention.Window = 7 * 24 * time.Hour
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "0 3 * * *"
	}

	// Routing
	if cfg.Routing.Cooldown == 0 {
		cfg.Routing.Cooldown = 5 * time.Minute
	}

	// Dispatch
	if cfg.Dispatch.MaxFailovers == 0 {
		cfg.Dispatch.MaxFailovers = 2
	}
	if cfg.Dispatch.UpstreamTimeout == 0 {
		cfg.Dispatch.UpstreamTimeout = 60 * time.Second
	}

	// Usage
	if cfg.Usage.QueueSize == 0 {
		cfg.Usage.QueueSize = 1024
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
}
