package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"payplan/internal/amqp"
	"payplan/internal/cache"
	"payplan/internal/cli"
	apphttp "payplan/internal/http"
	applog "payplan/internal/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(nil, applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot.Logger)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := cli.InitBackend(ctx, logger.Logger, cfg)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	}()

	cacheManager := cache.NewManager(logger.Logger)
	cacheManager.Register(b.Views)
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	defer cacheManager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:      b.Ledger,
		Instruments: b.Instruments,
		Fixes:       b.Fixes,
		Schedule:    b.Schedule,
	}, logger.WithComponent(applog.ComponentHTTP))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			"addr", srv.Addr,
			"backend", cfg.DataBackend,
			"amqp", b.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if b.Publisher != nil {
		consumerLog := logger.WithComponent(applog.ComponentAMQP)
		g.Go(func() error {
			err := b.Publisher.ConsumeScheduleRecomputed(gctx, func(ctx context.Context, msg *amqp.ScheduleRecomputedMessage) error {
				dropped := b.Schedule.Invalidate()
				consumerLog.InfoContext(ctx, "Schedule recomputed, views dropped",
					applog.FieldReason, msg.Reason,
					applog.FieldCount, msg.EntryCount,
					"views", dropped)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
