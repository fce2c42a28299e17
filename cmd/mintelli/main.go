package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"

	"github.com/mintelli/mintelli/internal/analytics"
	analytichttp "github.com/mintelli/mintelli/internal/analytics/http"
	"github.com/mintelli/mintelli/internal/app"
	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/auth"
	"github.com/mintelli/mintelli/internal/findata"
	"github.com/mintelli/mintelli/internal/observability"
	"github.com/mintelli/mintelli/internal/platform/db"
	"github.com/mintelli/mintelli/internal/privacy"
	privacyhttp "github.com/mintelli/mintelli/internal/privacy/http"
	"github.com/mintelli/mintelli/internal/recommend"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditSink := audit.NewPGSink(pool)
	trail := audit.NewTrail(auditSink, cfg.AuditFlushThreshold, logger).WithReader(auditSink)
	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)

	profileRepo := privacy.NewPGRepository(pool)
	privacyService := privacy.NewService(profileRepo, trail, logger).WithInvalidator(analyticsCache)
	gate := privacy.NewGate(profileRepo, trail).WithRecorder(metrics)
	filter := privacy.NewFilter(gate, logger, cfg.MinimizationCap)

	dataRepo := findata.NewPGRepository(pool)
	analyticsService := analytics.NewService(privacyService, gate, dataRepo, analyticsCache, logger, analytics.Config{
		LiquidityBuffer:     cfg.LiquidityBuffer,
		EmergencyFundMonths: cfg.EmergencyFundMonths,
	}).WithRecorder(metrics)
	synthesizer := recommend.NewSynthesizer(language.English, cfg.EmergencyFundMonths)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authHandler := auth.NewHandler(logger, tokens, cfg.APIKeyHash)
	privacyHandler := privacyhttp.NewHandler(logger, privacyService, filter, dataRepo, trail)
	analyticsHandler := analytichttp.NewHandler(logger, analyticsService, synthesizer, analyticsService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Tokens:           tokens,
		AuthHandler:      authHandler,
		PrivacyHandler:   privacyHandler,
		AnalyticsHandler: analyticsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := trail.Flush(shutdownCtx); err != nil {
		logger.Error("final audit flush", slog.Any("error", err))
	}
}
