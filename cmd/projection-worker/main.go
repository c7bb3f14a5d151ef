package main

import (
	"context"
	"time"

	"payplan/internal/cli"
	"payplan/internal/core"
	applog "payplan/internal/log"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(nil, applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(boot.Logger)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting projection-worker")

	b := cli.InitBackend(context.Background(), logger.Logger, cfg)
	processor := b.Recurring

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(context.Context) {
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	interval := cfg.RecurringInterval
	logger.Info("Recurring template processor configured",
		"interval", interval,
		"backend", cfg.DataBackend)

	run := func(now time.Time) {
		count, err := processor.ProcessDue(ctx, core.DateOf(now))
		if err != nil {
			logger.Error("Processing failed", "error", err)
			return
		}
		if count > 0 {
			// Cached views in this process may include the projections just materialised.
			b.Schedule.Invalidate()
		}
		logger.Info("Processing complete",
			"entries_created", count,
			"next_check", now.Add(interval).Format("15:04:05"))
	}

	logger.Info("Running initial recurring template processing")
	run(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				run(now)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
