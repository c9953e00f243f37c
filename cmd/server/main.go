package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"survey-bknd/internal/cache"
	"survey-bknd/internal/config"
	"survey-bknd/internal/database"
	"survey-bknd/internal/logger"
	"survey-bknd/internal/metrics"
	"survey-bknd/internal/routes"
	"survey-bknd/internal/services"
	"survey-bknd/internal/views"
)

func main() {
	// money goes out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	db, err := database.New(cfg.DatabaseURL, cfg)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.EnsureSchema(ctx, db)
		cancel()
		if err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		logr.Info("database schema ensured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := cache.Connect(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.CacheTTL, logr.Logger)
	cancel()
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.String("addr", cfg.RedisAddress), zap.Error(err))
		store = cache.Noop{}
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	rec := metrics.New(prometheus.DefaultRegisterer, metrics.Config{Environment: cfg.Environment})

	surveySvc := services.NewSurveyService(db, store, logr.Logger, rec).
		WithPageLimits(cfg.DefaultPageSize, cfg.MaxPageSize)
	financeSvc := services.NewFinanceService(db, store, logr.Logger, rec, cfg.Reference)

	manager := views.NewManager(views.Config{
		Units:           surveySvc,
		Locations:       surveySvc,
		Rollups:         financeSvc,
		Window:          cfg.DebounceWindow,
		Reference:       cfg.Reference,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		IdleTTL:         cfg.ViewIdleTTL,
		Logger:          logr.Logger,
		Metrics:         rec,
	})
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go manager.Run(janitorCtx)

	r := routes.NewRouter(routes.Dependencies{
		Units:     surveySvc,
		Locations: surveySvc,
		Finance:   financeSvc,
		Views:     manager,
		Reference: cfg.Reference,
	}, cfg, logr)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // exports
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started",
			zap.String("port", cfg.Port),
			zap.Duration("debounce_window", cfg.DebounceWindow),
			zap.String("reference_month", cfg.Reference().String()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	stopJanitor()
	manager.Close()
	logr.Info("server exited gracefully")
}
