package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/app"
	"github.com/navid-fn/ethmetrics/internal/ingester"
	"github.com/navid-fn/ethmetrics/internal/logger"
	"github.com/navid-fn/ethmetrics/internal/scheduler"
)

func main() {
	backfillDays := flag.Int("backfill", 0, "Backfill the last N days (1..365) under the retry policy and exit")
	flag.Parse()

	cfg := configs.AppLoad()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log, *backfillDays); err != nil {
		log.Error("Scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Scheduler shutdown complete")
}

func run(cfg *configs.AppConfig, log *slog.Logger, backfillDays int) error {
	if backfillDays < 0 || backfillDays > ingester.MaxDaysAgo {
		return ingester.ErrDaysOutOfRange
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer pipeline.Close()

	sched := scheduler.New(scheduler.PolicyFromConfig(cfg.Schedule), log, pipeline.Metrics)

	if backfillDays > 0 {
		return sched.RunOnce(ctx, scheduler.BackfillJob(backfillDays, pipeline.Ingester, log))
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:           pipeline.Metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	sched.Add(scheduler.DailyJob(cfg.Schedule, pipeline.Ingester, log))
	sched.Add(scheduler.MonthlyJob(cfg.Schedule, pipeline.Aggregator, log))

	log.Info("Scheduler started successfully",
		"daily", fmt.Sprintf("%02d:%02d UTC", cfg.Schedule.DailyHour, cfg.Schedule.DailyMinute),
		"monthly", fmt.Sprintf("day %d %02d:00 UTC", cfg.Schedule.MonthlyDay, cfg.Schedule.MonthlyHour),
	)

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
