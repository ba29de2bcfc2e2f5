package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budget-meal-planner/internal/app"
	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/logging"
	"budget-meal-planner/internal/telegram"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	if err := cfg.RequireTelegram(); err != nil {
		logger.Fatal().Err(err).Msg("telegram is not configured")
	}

	ctx := context.Background()

	// 2. Database, repositories and engine state
	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start application")
	}
	defer rt.Close()

	// 3. Telegram bot
	bot, err := telegram.NewBot(cfg, rt.App, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// 4. Start server with graceful shutdown
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Telegram.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Telegram.Port).Msg("telegram bot server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	bot.Wait()

	logger.Info().Msg("server exiting")
}
