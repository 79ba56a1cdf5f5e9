package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"evalgate/internal/audit"
	"evalgate/internal/auth"
	"evalgate/internal/config"
	transporthttp "evalgate/internal/http"
	"evalgate/internal/metrics"
	"evalgate/internal/platform/database"
	"evalgate/internal/platform/logging"
	"evalgate/internal/platform/migrate"
)

const (
	auditBufferSize   = 1024
	retentionInterval = time.Hour
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	eventRepo, cleanup, err := buildEventRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize auth event store", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	dispatcher := audit.NewDispatcher(eventRepo, auditBufferSize, logger)
	defer dispatcher.Close()

	retention := audit.NewRetentionJob(eventRepo, cfg.AuditRetention, logger)
	go retention.Run(ctx, retentionInterval)

	providerClient := &http.Client{Timeout: cfg.AuthTimeout}
	verifier := auth.NewRemoteVerifier(providerClient, cfg.AuthURL, cfg.AuthAPIKey, auth.WithCallObserver(collector))
	sessions := auth.NewService(verifier)

	codec := auth.NewProfileCodec([]byte(cfg.SessionSecret))
	if !codec.Available() {
		logger.Warn("SESSION_SECRET not set; profile cache disabled and every request is verified remotely")
	}
	cookies := transporthttp.NewSessionCookies(cfg.Cookies, codec, cfg.ProfileCookieTTL, cfg.SecureCookies())

	gate := transporthttp.NewGate(sessions, cookies, cfg.LoginPath, cfg.PublicPaths, logger,
		transporthttp.WithDecisionRecorder(collector),
		transporthttp.WithEventEmitter(dispatcher),
	)

	var upstream http.Handler
	if cfg.UpstreamURL != "" {
		target, err := url.Parse(cfg.UpstreamURL)
		if err != nil {
			logger.Error("invalid upstream url", "error", err)
			os.Exit(1)
		}
		upstream = transporthttp.NewUpstreamProxy(target, logger)
	} else {
		logger.Warn("UPSTREAM_URL not set; gated requests outside /api/session return 404")
	}

	router := transporthttp.NewRouter(cfg, transporthttp.RouterDeps{
		Gate:     gate,
		Cookies:  cookies,
		Events:   eventRepo,
		Upstream: upstream,
		Metrics:  metrics.Handler(registry),
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("evalgate listening", "addr", srv.Addr, "store", cfg.DataStore, "auth_url", cfg.AuthURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if dropped := dispatcher.Dropped(); dropped > 0 {
		logger.Warn("auth events dropped while the store was saturated", "dropped", dropped)
	}
}

func buildEventRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (audit.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory auth event store")
		return audit.NewInMemoryRepository(0), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return audit.NewPostgresRepository(db), cleanup, nil
}
