package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/app"
	"github.com/navid-fn/ethmetrics/internal/handler"
	"github.com/navid-fn/ethmetrics/internal/logger"
	"github.com/navid-fn/ethmetrics/internal/router"
)

func main() {
	cfg := configs.AppLoad()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("API server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("API server shutdown complete")
}

func run(cfg *configs.AppConfig, log *slog.Logger) error {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer pipeline.Close()

	routerConfig := &router.Config{
		DailyHandler:   handler.NewDailyHandler(pipeline.Ingester, log),
		MonthlyHandler: handler.NewMonthlyHandler(pipeline.Aggregator, log),
		HealthHandler:  handler.NewHealthHandler(pipeline.Store),
		Metrics:        pipeline.Metrics.Handler(),
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.NewRouter(routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	// Backfills can run long; give in-flight requests time to commit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
