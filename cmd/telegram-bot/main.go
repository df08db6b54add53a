package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"weekly-menu-planner/internal/backend"
	"weekly-menu-planner/internal/config"
	"weekly-menu-planner/internal/database"
	"weekly-menu-planner/internal/logger"
	"weekly-menu-planner/internal/metrics"
	"weekly-menu-planner/internal/retry"
	"weekly-menu-planner/internal/selector"
	"weekly-menu-planner/internal/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	appLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLog.Sync()

	// 2. Telemetry
	db, err := database.NewDB(cfg.MetricsDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	metricsStore := metrics.NewStore(db.SQL)
	defer metricsStore.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(metricsStore, metrics.NewCollectors(reg), appLog)

	// 3. Bot and controller
	bot, _, err := telegram.NewBot(cfg, appLog)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}
	bot.WithMetrics(metricsStore, filepath.Dir(cfg.MetricsDBPath))

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay

	client := backend.NewClient(cfg, backend.WithObserver(recorder))
	bot.Attach(selector.New(client, bot,
		selector.WithLogger(appLog),
		selector.WithRetryPolicy(policy),
	))

	// 4. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("Telegram Bot Server listening", logger.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLog.Info("Server exiting")
}
