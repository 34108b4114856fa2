package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/server/internal/alerts"
	"github.com/sasilab/sasi/server/internal/api"
	"github.com/sasilab/sasi/server/internal/auth"
	"github.com/sasilab/sasi/server/internal/config"
	"github.com/sasilab/sasi/server/internal/health"
	"github.com/sasilab/sasi/server/internal/store"
	"github.com/sasilab/sasi/server/internal/ws"
)

const healthPath = "/api/v1/health"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	slog.Info("sasi-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"run_ttl", cfg.Server.Runs.TTL,
		"storage", cfg.Server.Storage.Backend,
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run store with background TTL eviction, optionally backed by SQLite.
	st := store.New(cfg.Server.Runs.TTL)
	if cfg.Server.Storage.Enabled() {
		db, err := store.OpenSQLite(ctx, cfg.Server.Storage.Path)
		if err != nil {
			slog.Error("failed to open run archive", "path", cfg.Server.Storage.Path, "err", err)
			os.Exit(1)
		}
		defer db.Close()
		st.WithArchive(db)
		slog.Info("run archive opened", "path", cfg.Server.Storage.Path)
	}
	go st.Run(ctx)

	alertEngine := alerts.New(cfg.Server.Alerts)

	authn := auth.New(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())
	if cfg.Server.Auth.Mode == "apikey" && !authn.Enabled() {
		slog.Warn("auth mode is apikey but no key is set; requests are not authenticated",
			"key_env", cfg.Server.Auth.KeyEnv)
	}

	// gRPC health service behind the API key interceptors.
	grpcSrv := health.NewServer(authn)
	reporter := health.NewReporter(st, cfg.Server.StreamInterval)
	reporter.Register(grpcSrv)
	go reporter.Run(ctx)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	hub := ws.New(st, cfg.Server.StreamInterval)
	go hub.Run(ctx)

	// REST API and WebSocket hub share HTTPPort. Health stays open for probes.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, alertEngine, api.Limits{
		MaxSteps:  cfg.Server.Runs.MaxSteps,
		MaxValues: cfg.Server.Runs.MaxValues,
	}, api.WithCredentials(agents.Credentials{Key: cfg.Server.Agents.Key()})))
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           authn.Exempt(healthPath).Middleware(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("sasi-server shutting down")
	grpcSrv.GracefulStop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
