package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/bot"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info", "text", log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, log.ComponentApp)

	logger.Info("Starting fintrack",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"db_driver", cfg.DBDriver,
		"telegram", cfg.TelegramToken != "")

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	result, err := cli.OpenBackend(ctx, logger, cfg, false)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, result.Ledger, apphttp.Options{
		DefaultPageSize: cfg.DefaultPageSize,
		ReportPageSize:  cfg.ReportPageSize,
		RateLimitRPM:    cfg.RateLimitRPM,
		TrustedProxies:  cfg.TrustedProxies,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		_ = cli.RunCleanup(logger, cfg.ShutdownTimeout, result.Cleanup)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		metrics := srv.TraceMetrics()
		logger.Info("HTTP server stopped",
			"requests", metrics.TotalRequests,
			"avg_response_us", metrics.AverageResponseTime)
		return nil
	})

	if cfg.TelegramToken != "" {
		conv := bot.NewConversation(result.Ledger, logger)
		runner, err := bot.NewRunner(cfg.TelegramToken, cfg.TelegramDebug, conv, logger)
		if err != nil {
			logger.Error("Telegram bot disabled", log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
		} else {
			g.Go(func() error { return runner.Run(gctx) })
		}
	} else {
		logger.Info("Telegram bot disabled - no TELEGRAM_TOKEN provided")
	}

	runErr := g.Wait()
	cancel()
	if runErr != nil {
		logger.Error("Service stopped with error", log.FieldError, runErr)
	}

	cleanupErr := cli.RunCleanup(logger, cfg.ShutdownTimeout, result.Cleanup)
	if runErr != nil || cleanupErr != nil {
		os.Exit(1)
	}
}
