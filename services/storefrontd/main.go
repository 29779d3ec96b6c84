package storefrontd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"storefront/config"
	"storefront/core/events"
	"storefront/observability/logging"
	"storefront/observability/metrics"
	telemetry "storefront/observability/otel"
	"storefront/storage"
)

// Main initialises and runs the storefront daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/storefrontd/config.yaml", "path to storefrontd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := cfg.Environment
	if env == "" {
		env = strings.TrimSpace(os.Getenv("STOREFRONT_ENV"))
	}
	logger := logging.Setup("storefrontd", env, logging.Options{File: cfg.Logging})

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = "storefrontd"
	telemetryCfg.Environment = env
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	genesis, err := config.Load(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}

	indexer, err := OpenIndexer(cfg.Indexer, logger)
	if err != nil {
		return fmt.Errorf("open indexer: %w", err)
	}
	defer func() { _ = indexer.Close() }()

	storeMetrics := metrics.Storefront()
	node, err := NewNode(db, genesis, events.MultiEmitter{storeMetrics.Emitter(), indexer})
	if err != nil {
		return fmt.Errorf("open node: %w", err)
	}

	idemPath := cfg.Idempotency.Path
	if idemPath == "" {
		dir := cfg.DataDir
		if dir == "" {
			dir = os.TempDir()
		}
		idemPath = filepath.Join(dir, "storefrontd-idempotency.db")
	}
	idem, err := OpenIdempotencyStore(idemPath, cfg.Idempotency.TTL.Duration)
	if err != nil {
		return fmt.Errorf("open idempotency store: %w", err)
	}
	defer func() { _ = idem.Close() }()

	auth, err := NewAuthenticator(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	limiter := NewRateLimiter(cfg.RateLimit)

	server, err := NewServer(ServerConfig{
		Node:        node,
		Auth:        auth,
		Idempotency: idem,
		Limiter:     limiter,
		Indexer:     indexer,
		Metrics:     storeMetrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go housekeeping(stopCtx, logger, limiter, idem)

	errs := make(chan error, 1)
	go func() {
		logger.Info("storefrontd listening", slog.String("addr", cfg.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func openDatabase(dir string) (storage.Database, error) {
	if strings.TrimSpace(dir) == "" {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewLevelDB(filepath.Join(dir, "state"))
}

func housekeeping(ctx context.Context, logger *slog.Logger, limiter *RateLimiter, idem *IdempotencyStore) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep(10 * time.Minute)
			if n, err := idem.Prune(); err != nil {
				logger.Warn("prune idempotency records", slog.Any("error", err))
			} else if n > 0 {
				logger.Debug("pruned idempotency records", slog.Int("count", n))
			}
		}
	}
}
