package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"conduit-hq/conduit/pkg/adapters/factory"
	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/config"
	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/limits/ratelimit"
	"conduit-hq/conduit/pkg/proxy"
	"conduit-hq/conduit/pkg/registry"
	"conduit-hq/conduit/pkg/routing"
	"conduit-hq/conduit/pkg/secrets"
	"conduit-hq/conduit/pkg/server"
	"conduit-hq/conduit/pkg/telemetry/logging"
	"conduit-hq/conduit/pkg/telemetry/metrics"
	"conduit-hq/conduit/pkg/tenant"
	"conduit-hq/conduit/pkg/usage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the router server",
	Long: `Start the router server with the specified configuration.

The server listens on the configured address, authenticates requests
against the configured API keys, and dispatches completion requests
across registered upstream channels.

Examples:
  # Start with default config
  conduit run

  # Start with custom config
  conduit run --config /etc/conduit/config.yaml

  # Override listen address
  conduit run --listen 0.0.0.0:8080

  # Disable configuration hot reload
  conduit run --watch=false`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "reload API keys and pricing on config change")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	// Credential vault
	passphrase := os.Getenv(cfg.Vault.KeyEnv)
	if passphrase == "" {
		return fmt.Errorf("vault key environment variable %s is not set", cfg.Vault.KeyEnv)
	}
	vault, err := secrets.NewAESVault(passphrase)
	if err != nil {
		return fmt.Errorf("failed to initialize credential vault: %w", err)
	}

	// Vendor catalog and channel store
	cat, err := catalog.NewStore(catalog.BuiltinDescriptors())
	if err != nil {
		return fmt.Errorf("failed to load vendor catalog: %w", err)
	}

	store, err := registry.NewStore(&registry.StoreConfig{
		Path:         cfg.Store.Path,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
		WALMode:      true,
		BusyTimeout:  cfg.Store.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open channel store: %w", err)
	}
	defer store.Close()

	reg := registry.New(store, cat, vault, factory.NewRegistry(), &registry.Config{
		ProbeTimeout:    cfg.Monitor.ProbeTimeout,
		UpstreamTimeout: cfg.Dispatch.UpstreamTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Health monitoring
	book := health.NewBook()
	if cfg.Monitor.Enabled == nil || *cfg.Monitor.Enabled {
		monitor := health.NewMonitor(reg, book, &health.MonitorConfig{
			Schedule:     cfg.Monitor.Schedule,
			Concurrency:  cfg.Monitor.Concurrency,
			ProbeTimeout: cfg.Monitor.ProbeTimeout,
		})
		if err := monitor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health monitor: %w", err)
		}
		defer monitor.Stop()
	}

	// Event retention
	if cfg.Retention.Schedule != "" {
		retention := registry.NewRetention(store, &registry.RetentionConfig{
			Window:   cfg.Retention.Window,
			Schedule: cfg.Retention.Schedule,
		})
		if err := retention.Start(ctx); err != nil {
			return fmt.Errorf("failed to start event retention: %w", err)
		}
		defer retention.Stop()
	}

	// Routing and dispatch
	selector := routing.NewSelector(reg, book, &routing.Config{
		Cooldown: cfg.Routing.Cooldown,
	})
	limiter := ratelimit.NewChannelLimiter()

	sink := usage.NewAsyncSink(usage.LogSink{}, cfg.Usage.QueueSize)
	defer sink.Close()
	pricing := usage.NewPricing(pricingTable(cfg))

	collector := metrics.NewCollector(nil)

	dispatcher := proxy.NewDispatcher(selector, reg, cat, book, limiter, sink, pricing, collector, &proxy.DispatcherConfig{
		MaxFailovers: cfg.Dispatch.MaxFailovers,
	})

	// Inbound authentication, hot-reloadable
	resolver := tenant.NewStaticResolver(apiKeys(cfg))
	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) {
				resolver.Replace(apiKeys(next))
				pricing.Replace(pricingTable(next))
				slog.Info("applied configuration reload",
					"api_keys", len(next.Auth.APIKeys),
					"pricing_models", len(next.Usage.Pricing),
				)
			})
			if err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	srv := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, server.Dependencies{
		Dispatcher: dispatcher,
		Registry:   reg,
		Book:       book,
		Resolver:   resolver,
		Collector:  collector,
	})

	slog.Info("starting conduit",
		"version", Version,
		"address", cfg.Server.ListenAddress,
		"store", cfg.Store.Path,
	)

	return srv.Start(ctx)
}

// apiKeys converts the configured key set into resolver entries.
func apiKeys(cfg *config.Config) []*tenant.APIKey {
	keys := make([]*tenant.APIKey, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		keys = append(keys, &tenant.APIKey{
			Key: k.Key,
			Tenant: tenant.Tenant{
				ID:    k.TenantID,
				Name:  k.TenantName,
				Admin: k.Admin,
			},
			Enabled: k.Enabled == nil || *k.Enabled,
		})
	}
	return keys
}

// pricingTable converts the configured pricing section into the usage
// package's table form.
func pricingTable(cfg *config.Config) map[string]usage.ModelPricing {
	table := make(map[string]usage.ModelPricing, len(cfg.Usage.Pricing))
	for model, p := range cfg.Usage.Pricing {
		table[model] = usage.ModelPricing{
			PromptCostPer1K:     p.PromptCostPer1K,
			CompletionCostPer1K: p.CompletionCostPer1K,
		}
	}
	return table
}
