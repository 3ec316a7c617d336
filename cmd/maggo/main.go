package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mag/maggo/internal/api"
	"github.com/mag/maggo/internal/auth"
	"github.com/mag/maggo/internal/grid"
	"github.com/mag/maggo/internal/metrics"
	"github.com/mag/maggo/internal/model"
)

func main() {
	// Optional .env file for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("MAGGO_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	coeffsCfg := loadCoeffsConfig(logger)
	apiCfg := loadAPIConfig(logger)

	// The embedded IGRF-13 table is always available; a cached or freshly
	// fetched file replaces it when one parses cleanly.
	store := model.NewStore()
	store.Set(model.Default())

	cache := model.NewCache(coeffsCfg.CacheDir, coeffsCfg.MaxFiles)
	if data, ts, err := cache.LoadLatest(); err != nil {
		logger.Info("no coefficient cache found, using embedded table", "error", err)
	} else {
		table, err := model.ParseCoefficients(bytes.NewReader(data), "cache", logger)
		if err != nil {
			logger.Warn("failed to parse cached coefficient file", "error", err)
		} else {
			store.Set(table)
			logger.Info("loaded coefficient table from cache",
				"last_epoch", table.LastEpoch(),
				"cached_at", ts.Format(time.RFC3339),
			)
		}
	}

	refresher := model.NewRefresher(model.NewFetcher(coeffsCfg.SourceURL), cache, store, logger)

	if coeffsCfg.RefreshOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if _, err := refresher.Refresh(ctx); err != nil {
			logger.Warn("startup coefficient refresh failed, keeping current table", "error", err)
		}
		cancel()
	}

	metrics.SetModelLastEpoch(store.Get().LastEpoch())

	pool := grid.NewPool(loadGridWorkers(logger), logger)
	srv := api.NewServer(addr, logger, authCfg, store, refresher, pool, apiCfg)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"table_source", store.Get().Source(),
			"last_epoch", store.Get().LastEpoch(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("MAGGO_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("MAGGO_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("MAGGO_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("MAGGO_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

type coeffsConfig struct {
	SourceURL      string
	CacheDir       string
	MaxFiles       int
	RefreshOnStart bool
}

func loadCoeffsConfig(logger *slog.Logger) coeffsConfig {
	cfg := coeffsConfig{
		CacheDir: "/tmp/maggo/coeffs",
		MaxFiles: 5,
	}

	if v := os.Getenv("MAGGO_COEFFS_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("MAGGO_COEFFS_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("MAGGO_COEFFS_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MAGGO_COEFFS_MAX_FILES value, using default", "value", v, "default", cfg.MaxFiles)
		} else {
			cfg.MaxFiles = n
		}
	}

	if v := os.Getenv("MAGGO_COEFFS_REFRESH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid MAGGO_COEFFS_REFRESH value, defaulting to false", "value", v)
		} else {
			cfg.RefreshOnStart = enabled
		}
	}

	logger.Info("coefficient config",
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"max_files", cfg.MaxFiles,
		"refresh_on_start", cfg.RefreshOnStart,
	)

	return cfg
}

func loadAPIConfig(logger *slog.Logger) api.Config {
	cfg := api.Config{
		GridMinStepDeg: 1.0,
	}

	if v := os.Getenv("MAGGO_TRUST_PROXY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid MAGGO_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = enabled
		}
	}

	if v := os.Getenv("MAGGO_SUPPRESS_ADVISORIES"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid MAGGO_SUPPRESS_ADVISORIES value, defaulting to false", "value", v)
		} else {
			cfg.SuppressAdvisories = enabled
		}
	}

	if v := os.Getenv("MAGGO_GRID_MIN_STEP"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid MAGGO_GRID_MIN_STEP value, using default", "value", v, "default", cfg.GridMinStepDeg)
		} else {
			cfg.GridMinStepDeg = f
		}
	}

	return cfg
}

func loadGridWorkers(logger *slog.Logger) int {
	workers := runtime.NumCPU()

	if v := os.Getenv("MAGGO_GRID_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MAGGO_GRID_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}

	logger.Info("grid config", "workers", workers)
	return workers
}
