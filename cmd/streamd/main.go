package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/bybit-streams/internal/api"
	"github.com/rickgao/bybit-streams/internal/auth"
	"github.com/rickgao/bybit-streams/internal/config"
	"github.com/rickgao/bybit-streams/internal/endpoint"
	"github.com/rickgao/bybit-streams/internal/journal"
	"github.com/rickgao/bybit-streams/internal/logging"
	"github.com/rickgao/bybit-streams/internal/manager"
	"github.com/rickgao/bybit-streams/internal/poller"
	"github.com/rickgao/bybit-streams/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamd.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting streamd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"exchange", cfg.Exchange,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("streamd failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var creds *auth.Credentials
	if cfg.API.APIKey != "" {
		var err error
		creds, err = auth.LoadCredentials(cfg.API.APIKey, cfg.API.APISecret, cfg.API.SecretFile)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
	}

	// Create API client
	exchange, _ := endpoint.ParseExchange(cfg.Exchange)
	restURL := cfg.API.RestURL
	if restURL == "" {
		restURL = exchange.RestURL()
	}
	opts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	}
	if creds != nil {
		opts = append(opts, api.WithCredentials(creds))
	}
	apiClient := api.NewClient(restURL, opts...)

	serverTime, err := apiClient.GetServerTime(ctx)
	if err != nil {
		logger.Warn("failed to get server time", "error", err)
	} else {
		logger.Info("exchange reachable",
			"rest_url", restURL,
			"clock_skew", time.Since(serverTime).Round(time.Millisecond),
		)
	}

	if creds != nil && hasPrivateStreams(cfg) {
		info, err := apiClient.GetAPIKeyInfo(ctx)
		if err != nil {
			return fmt.Errorf("check api key: %w", err)
		}
		logger.Info("api key verified", "uid", info.UID, "read_only", info.ReadOnly == 1)
	}

	// Start the stream manager
	mgr := manager.New(cfg.ManagerOptions(), logger)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}

	// Journal lifecycle signals if configured
	sink, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	var jrnl *journal.Journal
	if sink != nil {
		jrnl = journal.New(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, mgr.Signals(), sink, logger)
		if err := jrnl.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		logger.Info("journal started", "driver", cfg.Journal.Driver)
	}

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(mgr, jrnl),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Fixed streams start now, all_symbols streams follow the poller
	var apiKey, apiSecret string
	if creds != nil {
		apiKey, apiSecret = creds.APIKey, creds.APISecret
	}
	tracker := newSymbolStreams(cfg, mgr, logger)
	for _, s := range cfg.Streams {
		if s.AllSymbols {
			tracker.add(s)
			continue
		}
		ids, err := mgr.CreateStream(ctx, cfg.StreamRequest(s, nil, apiKey, apiSecret))
		if err != nil {
			logger.Error("failed to create stream", "label", s.Label, "category", s.Category, "error", err)
			continue
		}
		logger.Info("stream created", "label", s.Label, "category", s.Category, "stream_ids", ids)
	}

	var symbolPoller *poller.Poller
	if categories := tracker.categories(); len(categories) > 0 {
		symbolPoller = poller.New(poller.Config{Interval: cfg.Poller.Interval}, apiClient, categories, tracker, logger)
		if err := symbolPoller.Start(ctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
	}

	logger.Info("streamd running",
		"streams", mgr.GetNumberOfStreams(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if symbolPoller != nil {
		if err := symbolPoller.Stop(shutdownCtx); err != nil {
			logger.Warn("poller stop", "error", err)
		}
	}
	if err := mgr.Stop(shutdownCtx); err != nil {
		logger.Warn("manager stop", "error", err)
	}
	if jrnl != nil {
		if err := jrnl.Stop(shutdownCtx); err != nil {
			logger.Warn("journal stop", "error", err)
		}
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("streamd stopped")
	return nil
}

func hasPrivateStreams(cfg *config.Config) bool {
	for _, s := range cfg.Streams {
		if cat, err := endpoint.ParseCategory(s.Category); err == nil && cat.IsPrivate() {
			return true
		}
	}
	return false
}
