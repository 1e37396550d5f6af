package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Auth.APIKeys = []APIKeyConfig{
		{Key: "sk-test-1", TenantID: "tenant-a"},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "bad listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "no-port" },
			field:  "server.listen_address",
		},
		{
			name:   "tls without cert",
			mutate: func(c *Config) { c.Server.TLS.Enabled = true },
			field:  "server.tls.cert_file",
		},
		{
			name:   "empty store path",
			mutate: func(c *Config) { c.Store.Path = "" },
			field:  "store.path",
		},
		{
			name:   "idle conns exceed open conns",
			mutate: func(c *Config) { c.Store.MaxIdleConns = 50 },
			field:  "store.max_idle_conns",
		},
		{
			name:   "api key without key",
			mutate: func(c *Config) { c.Auth.APIKeys[0].Key = "" },
			field:  "auth.api_keys[0].key",
		},
		{
			name: "duplicate api key",
			mutate: func(c *Config) {
				c.Auth.APIKeys = append(c.Auth.APIKeys,
					APIKeyConfig{Key: "sk-test-1", TenantID: "tenant-b"})
			},
			field: "auth.api_keys[1].key",
		},
		{
			name:   "bad monitor schedule",
			mutate: func(c *Config) { c.Monitor.Schedule = "whenever" },
			field:  "monitor.schedule",
		},
		{
			name:   "zero probe timeout",
			mutate: func(c *Config) { c.Monitor.ProbeTimeout = 0 },
			field:  "monitor.probe_timeout",
		},
		{
			name:   "bad retention schedule",
			mutate: func(c *Config) { c.Retention.Schedule = "99 99 * * *" },
			field:  "retention.schedule",
		},
		{
			name:   "negative max failovers",
			mutate: func(c *Config) { c.Dispatch.MaxFailovers = -1 },
			field:  "dispatch.max_failovers",
		},
		{
			name:   "zero upstream timeout",
			mutate: func(c *Config) { c.Dispatch.UpstreamTimeout = 0 },
			field:  "dispatch.upstream_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() error = nil, want failure")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %q", err, tt.field)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ListenAddress = "no-port"
	cfg.Store.Path = ""

	err := Validate(cfg)
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("errors = %d, want 2: %v", len(verrs), verrs)
	}
}
