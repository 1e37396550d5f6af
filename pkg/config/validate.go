package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects all validation failures so they can be
// reported together.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors. Defaults should be
// applied first; Validate does not fill in missing values.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		add("server.listen_address", "invalid address %q: %v", cfg.Server.ListenAddress, err)
	}
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			add("server.tls.cert_file", "required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			add("server.tls.key_file", "required when TLS is enabled")
		}
	}
	if cfg.Server.RequestTimeout < 0 {
		add("server.request_timeout", "must not be negative")
	}

	// Store
	if cfg.Store.Path == "" {
		add("store.path", "required")
	}
	if cfg.Store.MaxIdleConns > cfg.Store.MaxOpenConns {
		add("store.max_idle_conns", "must not exceed max_open_conns")
	}

	// Auth
	seen := make(map[string]int)
	for i, key := range cfg.Auth.APIKeys {
		field := fmt.Sprintf("auth.api_keys[%d]", i)
		if key.Key == "" {
			add(field+".key", "required")
		}
		if key.TenantID == "" {
			add(field+".tenant_id", "required")
		}
		if prev, dup := seen[key.Key]; dup && key.Key != "" {
			add(field+".key", "duplicates auth.api_keys[%d]", prev)
		} else {
			seen[key.Key] = i
		}
	}

	// Monitor
	if cfg.Monitor.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Monitor.Schedule); err != nil {
			add("monitor.schedule", "invalid cron expression %q: %v", cfg.Monitor.Schedule, err)
		}
	}
	if cfg.Monitor.Concurrency < 1 {
		add("monitor.concurrency", "must be at least 1")
	}
	if cfg.Monitor.ProbeTimeout <= 0 {
		add("monitor.probe_timeout", "must be positive")
	}

	// Retention
	if cfg.Retention.Window <= 0 {
		add("retention.window", "must be positive")
	}
	if cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			add("retention.schedule", "invalid cron expression %q: %v", cfg.Retention.Schedule, err)
		}
	}

	// Routing
	if cfg.Routing.Cooldown < 0 {
		add("routing.cooldown", "must not be negative")
	}

	// Dispatch
	if cfg.Dispatch.MaxFailovers < 0 {
		add("dispatch.max_failovers", "must not be negative")
	}
	if cfg.Dispatch.UpstreamTimeout <= 0 {
		add("dispatch.upstream_timeout", "must be positive")
	}

	// Usage
	if cfg.Usage.QueueSize < 1 {
		add("usage.queue_size", "must be at least 1")
	}
	for model, pricing := range cfg.Usage.Pricing {
		if pricing.PromptCostPer1K < 0 || pricing.CompletionCostPer1K < 0 {
			add("usage.pricing."+model, "costs must not be negative")
		}
	}

	// Telemetry
	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("telemetry.logging.level", "must be one of debug, info, warn, error; got %q", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		add("telemetry.logging.format", "must be json or text; got %q", cfg.Telemetry.Logging.Format)
	}
	if !strings.HasPrefix(cfg.Telemetry.Metrics.Path, "/") {
		add("telemetry.metrics.path", "must start with /")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
