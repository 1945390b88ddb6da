package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/backend"
	"github.com/bloodlink/donorauth/identity"
	"github.com/bloodlink/donorauth/internal/mockapi"
	promexport "github.com/bloodlink/donorauth/metrics/export/prometheus"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go-simpler.org/env"
)

type config struct {
	BackendURL     string        `env:"BACKEND_URL"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" default:"10s"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPrefix    string        `env:"DONORAUTH_REDIS_PREFIX" default:"donor"`
	MetricsAddr    string        `env:"DONORAUTH_METRICS_ADDR"`
	AuditEnabled   bool          `env:"DONORAUTH_AUDIT" default:"true"`
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

// startMockBackend serves an in-memory backend on a loopback port and returns
// its base URL.
func startMockBackend(logger *slog.Logger) (string, func(), error) {
	api, err := mockapi.New(mockapi.Config{
		SessionSecret: []byte(uuid.NewString() + uuid.NewString()),
		Logger:        logger,
	})
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: api, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Mock backend stopped", "error", err)
		}
	}()
	return "http://" + ln.Addr().String(), func() { _ = srv.Close() }, nil
}

func newRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("Smoke run failed", "error", err, "message", donorAuth.UserMessage(err))
		os.Exit(1)
	}
}

func run(cfg *config, logger *slog.Logger) error {
	baseURL := cfg.BackendURL
	if baseURL == "" {
		url, stop, err := startMockBackend(logger)
		if err != nil {
			return fmt.Errorf("start mock backend: %w", err)
		}
		defer stop()
		baseURL = url
		logger.Info("Using in-process mock backend", "url", baseURL)
	}

	rdb, closeRedis, err := newRedis(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer closeRedis()

	ip, err := identity.NewRedisProvider(rdb, identity.RedisConfig{Prefix: cfg.RedisPrefix, Logger: logger})
	if err != nil {
		return fmt.Errorf("create identity provider: %w", err)
	}
	be, err := backend.NewClient(backend.Config{BaseURL: baseURL, Timeout: cfg.BackendTimeout}, logger)
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}

	conf := donorAuth.DefaultConfig()
	conf.Audit.Enabled = cfg.AuditEnabled
	conf.Metrics.Enabled = true
	conf.Metrics.EnableLatencyHistograms = true

	c, err := donorAuth.New().
		WithConfig(conf).
		WithBackend(be).
		WithIdentityProvider(ip).
		WithLogger(logger).
		WithAuditSink(donorAuth.NewSlogSink(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}
	defer c.Close()

	sub := c.Subscribe(func(s donorAuth.Snapshot) {
		logger.Debug("Session changed", "state", s.State.String(), "loading", s.Loading)
	})
	defer sub.Close()

	ctx := donorAuth.WithRequestID(context.Background(), uuid.NewString())
	if err := smoke(ctx, c, logger); err != nil {
		return err
	}

	exporter := promexport.NewPrometheusExporter(c)
	if cfg.MetricsAddr == "" {
		fmt.Print(exporter.Render())
		return nil
	}
	return serveMetrics(cfg.MetricsAddr, exporter.Handler(), logger)
}

func smoke(ctx context.Context, c *donorAuth.Controller, logger *slog.Logger) error {
	snap := c.Start(ctx)
	logger.Info("Reconciled", "state", snap.State.String())

	email := "smoke-" + uuid.NewString()[:8] + "@example.com"
	req := donorAuth.RegisterRequest{
		Email:           email,
		Password:        "smoke-pass-1",
		ConfirmPassword: "smoke-pass-1",
		Name:            "Smoke Donor",
		Avatar:          "https://img.example.com/smoke.png",
		BloodGroup:      "O+",
		District:        "Dhaka",
		Upazila:         "Savar",
	}
	if _, err := c.Register(ctx, req); err != nil {
		return err
	}
	logger.Info("Registered", "email", email)

	c.Logout(ctx)
	if _, err := c.Login(ctx, email, req.Password); err != nil {
		return err
	}
	if _, err := c.FetchCurrentUser(ctx); err != nil {
		return err
	}

	name := "Smoke Donor Updated"
	snap, err := c.UpdateProfile(ctx, donorAuth.ProfileUpdate{Name: &name})
	if err != nil {
		return err
	}
	if snap.Profile == nil || snap.Profile.Name != name {
		return errors.New("profile update not reflected in session")
	}

	if _, err := c.Authorize(donorAuth.RoleDonor); err != nil {
		return err
	}

	snap = c.Logout(ctx)
	logger.Info("Smoke run complete", "state", snap.State.String())
	return nil
}

func serveMetrics(addr string, h http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
