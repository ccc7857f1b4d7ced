package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/airgate/internal/airquality"
	"github.com/oriys/airgate/internal/api"
	"github.com/oriys/airgate/internal/cache"
	"github.com/oriys/airgate/internal/config"
	"github.com/oriys/airgate/internal/logging"
	"github.com/oriys/airgate/internal/metrics"
	"github.com/oriys/airgate/internal/observability"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		upstream   string
		timeout    time.Duration
		ttl        time.Duration
		logLevel   string
		logFormat  string
		lookupLog  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the air quality gateway",
		Long:  "Run the HTTP gateway serving GET /airquality?city=<name> with a TTL cache in front of the provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Daemon.HTTPAddr = listenAddr
			}
			if flags.Changed("upstream-url") {
				cfg.Upstream.BaseURL = upstream
			}
			if flags.Changed("timeout") {
				cfg.Upstream.Timeout = timeout
			}
			if flags.Changed("cache-ttl") {
				cfg.Cache.TTL = ttl
			}
			if flags.Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.Daemon.LogFormat = logFormat
			}
			if flags.Changed("lookup-log") {
				cfg.Daemon.LookupLogFile = lookupLog
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&listenAddr, "listen", ":5000", "HTTP listen address")
	cmd.Flags().StringVar(&upstream, "upstream-url", airquality.DefaultBaseURL, "Air quality provider base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", airquality.DefaultTimeout, "Upstream request timeout")
	cmd.Flags().DurationVar(&ttl, "cache-ttl", airquality.DefaultTTL, "How long a cached reading stays fresh")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	cmd.Flags().StringVar(&lookupLog, "lookup-log", "", "Append per-lookup JSON lines to this file")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logging.InitStructured(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel)
	metrics.InitPrometheus(cfg.Metrics.Namespace, nil)

	if err := observability.Init(ctx, cfg.Tracing); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := observability.Shutdown(context.Background()); err != nil {
			logging.Op().Warn("tracing shutdown failed", "error", err)
		}
	}()

	client, err := airquality.NewClient(airquality.ClientConfig{
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: cfg.Upstream.Timeout,
	})
	if err != nil {
		return err
	}
	resolver := airquality.NewResolver(cache.NewInMemoryStore(), client, cfg.Cache.TTL)

	lookups := logging.Default()
	if cfg.Daemon.LookupLogFile != "" {
		if err := lookups.SetOutput(cfg.Daemon.LookupLogFile); err != nil {
			return fmt.Errorf("open lookup log: %w", err)
		}
	}
	defer lookups.Close()

	httpServer := &http.Server{
		Addr: cfg.Daemon.HTTPAddr,
		Handler: api.NewHandler(api.ServerConfig{
			Resolver:       resolver,
			Lookups:        lookups,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Op().Info("airgate started",
			"addr", cfg.Daemon.HTTPAddr,
			"upstream", cfg.Upstream.BaseURL,
			"cache_ttl", cfg.Cache.TTL.String(),
			"tracing", cfg.Tracing.Enabled,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logging.Op().Info("shutdown signal received", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown airgate: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("airgate server error: %w", err)
	}
}
