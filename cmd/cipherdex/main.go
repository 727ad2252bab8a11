package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cipherdex/internal/config"
	"github.com/kailas-cloud/cipherdex/internal/crypto"
	dbDynamo "github.com/kailas-cloud/cipherdex/internal/db/dynamo"
	dbRedis "github.com/kailas-cloud/cipherdex/internal/db/redis"
	"github.com/kailas-cloud/cipherdex/internal/generator"
	"github.com/kailas-cloud/cipherdex/internal/license"
	logpkg "github.com/kailas-cloud/cipherdex/internal/logger"
	"github.com/kailas-cloud/cipherdex/internal/metrics"
	recordrepo "github.com/kailas-cloud/cipherdex/internal/repository/recordstore"
	searchrepo "github.com/kailas-cloud/cipherdex/internal/repository/searchstore"
	virtualrepo "github.com/kailas-cloud/cipherdex/internal/repository/virtual"
	chiTransport "github.com/kailas-cloud/cipherdex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/cipherdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cipherdex/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/cipherdex/internal/usecase/search"
	virtualuc "github.com/kailas-cloud/cipherdex/internal/usecase/virtual"
	"github.com/kailas-cloud/cipherdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cipherdex API server",
		zap.String("build", version.Short()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("search_store_addrs", cfg.SearchStore.Addrs),
		zap.String("record_store_table", cfg.RecordStore.Table),
	)

	codec, err := crypto.NewCodecFromBase64(cfg.Encryption.MasterKey)
	if err != nil {
		logger.Fatal("Failed to build encryption codec", zap.Error(err))
	}

	fieldTable, err := cfg.FieldTable()
	if err != nil {
		logger.Fatal("Invalid field encryption config", zap.Error(err))
	}

	// Search store (Redis)
	searchStore, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.SearchStore.Addrs,
		Username: cfg.SearchStore.Username,
		Password: cfg.SearchStore.Password,
		DB:       cfg.SearchStore.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create search store client", zap.Error(err))
	}
	defer searchStore.Close()

	ctx := context.Background()
	if err := searchStore.WaitForReady(ctx, time.Duration(cfg.SearchStore.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search store not ready", zap.Error(err))
	}
	logger.Info("Connected to search store")

	// Record store (DynamoDB)
	recordStore, err := dbDynamo.NewStore(ctx, dbDynamo.Config{
		Table:    cfg.RecordStore.Table,
		Region:   cfg.RecordStore.Region,
		Endpoint: cfg.RecordStore.Endpoint,
	})
	if err != nil {
		logger.Fatal("Failed to create record store client", zap.Error(err))
	}
	if err := recordStore.WaitForReady(ctx, time.Duration(cfg.RecordStore.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Record store not ready", zap.Error(err))
	}
	logger.Info("Connected to record store", zap.String("table", cfg.RecordStore.Table))

	// Register domain metrics explicitly (no init())
	metrics.RegisterDomainMetrics()

	// Repositories
	searchRepo := searchrepo.New(searchStore, codec, fieldTable).
		WithKeyPrefix(cfg.SearchStore.KeyPrefix)
	recordRepo := recordrepo.New(recordStore, codec)

	// License gate shared by everything that touches the virtualization
	// layer, plus its metrics collector.
	gate := license.New(cfg.Virtual.LicenseCeiling)
	prometheus.MustRegister(metrics.NewGateCollector(gate))

	// Virtualization client is optional; an empty base_url disables the layer.
	var virtualSvc *virtualuc.Service
	var virtualPinger healthuc.Pinger
	if cfg.Virtual.BaseURL != "" {
		virtualClient, err := virtualrepo.New(virtualrepo.Config{
			BaseURL:  cfg.Virtual.BaseURL,
			Username: cfg.Virtual.Username,
			Password: cfg.Virtual.Password,
			Timeout:  time.Duration(cfg.Virtual.TimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Fatal("Failed to create virtualization client", zap.Error(err))
		}
		virtualSvc = virtualuc.New(virtualClient, gate, logger)
		virtualPinger = virtualClient
		logger.Info("Virtualization layer enabled",
			zap.String("base_url", cfg.Virtual.BaseURL),
			zap.Int("license_ceiling", cfg.Virtual.LicenseCeiling),
		)
	}

	// Use case services
	searchSvc := searchuc.New(fieldTable, searchRepo, recordRepo)
	ingestSvc := ingestuc.New(searchRepo, recordRepo, ingestuc.Options{
		BatchSize:        cfg.Ingest.BatchSize,
		PerRecordTimeout: time.Duration(cfg.Ingest.PerRecordTimeoutSec) * time.Second,
		HaltOnMismatch:   cfg.Ingest.HaltOnMismatch,
	}, logger)
	healthSvc := healthuc.New(searchRepo, recordRepo, virtualPinger)

	gen := generator.New()

	server := chiTransport.NewServer(
		searchSvc, ingestSvc, virtualSvc, healthSvc,
		recordRepo, gen, cfg.Ingest.DefaultCount, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
