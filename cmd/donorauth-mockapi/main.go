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

	"github.com/bloodlink/donorauth/internal/mockapi"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type config struct {
	Addr           string        `env:"MOCKAPI_ADDR" default:":8081"`
	SessionSecret  string        `env:"SESSION_SECRET"`
	SessionMaxAge  time.Duration `env:"SESSION_MAX_AGE" default:"24h"`
	LoginPerMinute float64       `env:"LOGIN_PER_MINUTE" default:"30"`
	LoginBurst     int           `env:"LOGIN_BURST" default:"10"`
	LogLevel       string        `env:"LOG_LEVEL" default:"info"`
}

func loadConfig() (*config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, errors.New("SESSION_SECRET must be at least 32 characters")
	}
	return &cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	api, err := mockapi.New(mockapi.Config{
		SessionSecret:  []byte(cfg.SessionSecret),
		SessionMaxAge:  cfg.SessionMaxAge,
		LoginPerMinute: cfg.LoginPerMinute,
		LoginBurst:     cfg.LoginBurst,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("Failed to create mock API", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Mock API listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
