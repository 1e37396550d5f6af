package config

import "time"

// Config is the root configuration structure for Conduit.
// It contains all configuration sections for the HTTP server, channel
// store, health monitoring, routing, dispatch, usage accounting, and
// telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen
	// address, timeouts, and TLS settings.
	Server ServerConfig `yaml:"server"`

	// Store contains configuration for the SQLite channel store.
	Store StoreConfig `yaml:"store"`

	// Vault contains credential encryption settings.
	Vault VaultConfig `yaml:"vault"`

	// Auth contains the API keys that authenticate inbound requests.
	Auth AuthConfig `yaml:"auth"`

	// Monitor contains configuration for the background health probe
	// sweep.
	Monitor MonitorConfig `yaml:"monitor"`

	// Retention contains event retention settings for the channel
	// event log.
	Retention RetentionConfig `yaml:"retention"`

	// Routing contains channel selection settings.
	Routing RoutingConfig `yaml:"routing"`

	// Dispatch contains request dispatch and failover settings.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Usage contains usage accounting and pricing settings.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry contains observability configuration including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadHeaderTimeout is the maximum duration for reading request
	// headers. Body read timeouts are not applied globally because
	// completion requests stream.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server
	// will read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// RequestTimeout bounds non-streaming completion requests. It is
	// not applied to streaming requests, which are bounded by the
	// upstream timeout per attempt instead.
	// Default: 120s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// TLS contains TLS settings. TLS is disabled unless both the
	// certificate and key files are set.
	TLS TLSConfig `yaml:"tls"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// TLSConfig contains TLS settings for the HTTP server.
type TLSConfig struct {
	// Enabled controls whether the server terminates TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM-encoded certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Use ["*"] to allow all origins.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "PUT", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers.
	// Default: ["Authorization", "Content-Type", "X-Request-ID", "X-API-Key"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// StoreConfig contains configuration for the SQLite channel store.
type StoreConfig struct {
	// Path is the SQLite database file path.
	// Default: "conduit.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is how long SQLite waits on a locked database before
	// returning SQLITE_BUSY.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// VaultConfig contains credential encryption settings. Channel
// credentials are sealed with AES-256-GCM before they reach the store.
type VaultConfig struct {
	// KeyEnv names the environment variable holding the encryption
	// passphrase. The variable must be set at startup.
	// Default: "CONDUIT_VAULT_KEY"
	KeyEnv string `yaml:"key_env"`
}

// AuthConfig contains the inbound API key set.
type AuthConfig struct {
	// APIKeys maps bearer keys to tenants. Keys may use ${secret:name}
	// references resolved from the environment at load time. This
	// section hot-reloads.
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig is one configured API key.
type APIKeyConfig struct {
	// Key is the bearer token presented by clients. Supports
	// ${secret:name} references.
	Key string `yaml:"key"`

	// TenantID identifies the tenant this key authenticates.
	TenantID string `yaml:"tenant_id"`

	// TenantName is a human-readable tenant label.
	TenantName string `yaml:"tenant_name"`

	// Admin grants access to the channel administration API.
	// Default: false
	Admin bool `yaml:"admin"`

	// Enabled controls whether the key is accepted.
	// Default: true
	Enabled *bool `yaml:"enabled"`
}

// MonitorConfig contains configuration for the background health probe
// sweep.
type MonitorConfig struct {
	// Enabled controls whether the probe sweep runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Schedule is the cron expression for probe sweeps. Accepts
	// standard five-field cron and the @every shorthand.
	// Default: "@every 60s"
	Schedule string `yaml:"schedule"`

	// Concurrency caps how many probes run at once.
	// Default: 8
	Concurrency int `yaml:"concurrency"`

	// ProbeTimeout bounds each individual probe.
	// Default: 10s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// RetentionConfig contains event retention settings.
type RetentionConfig struct {
	// Window is how long channel events are kept.
	// Default: 168h (7 days)
	Window time.Duration `yaml:"window"`

	// Schedule is the cron expression for prune runs. Empty disables
	// scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`
}

// RoutingConfig contains channel selection settings.
type RoutingConfig struct {
	// Cooldown is how long a channel stays excluded from selection
	// after an error, absent a newer success.
	// Default: 5m
	Cooldown time.Duration `yaml:"cooldown"`
}

// DispatchConfig contains request dispatch and failover settings.
type DispatchConfig struct {
	// MaxFailovers is the number of backup channels tried after the
	// primary attempt fails with a retryable error.
	// Default: 2
	MaxFailovers int `yaml:"max_failovers"`

	// UpstreamTimeout is the per-attempt timeout for upstream calls.
	// Default: 60s
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// UsageConfig contains usage accounting and pricing settings.
type UsageConfig struct {
	// QueueSize is the buffer size of the asynchronous usage sink.
	// Records are dropped (and counted) when the buffer is full.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// Pricing maps model names to per-1K-token costs. A name matches
	// exactly or as a prefix (e.g. "gpt-4" covers "gpt-4-turbo").
	// This section hot-reloads.
	Pricing map[string]PricingConfig `yaml:"pricing"`
}

// PricingConfig is the USD cost per 1K tokens for one model.
type PricingConfig struct {
	// PromptCostPer1K is the cost per 1K prompt tokens.
	PromptCostPer1K float64 `yaml:"prompt_cost_per_1k"`

	// CompletionCostPer1K is the cost per 1K completion tokens.
	CompletionCostPer1K float64 `yaml:"completion_cost_per_1k"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line positions in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
