package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/cache"
	"github.com/quenty/webchannel-server-go/internal/config"
	"github.com/quenty/webchannel-server-go/internal/correlation"
	"github.com/quenty/webchannel-server-go/internal/database"
	"github.com/quenty/webchannel-server-go/internal/delivery"
	"github.com/quenty/webchannel-server-go/internal/handler"
	"github.com/quenty/webchannel-server-go/internal/jobs"
	"github.com/quenty/webchannel-server-go/internal/middleware"
	"github.com/quenty/webchannel-server-go/internal/pipeline"
	redisclient "github.com/quenty/webchannel-server-go/internal/redis"
	"github.com/quenty/webchannel-server-go/internal/registry"
	"github.com/quenty/webchannel-server-go/internal/repository"
	"github.com/quenty/webchannel-server-go/internal/token"
	"github.com/quenty/webchannel-server-go/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	verifier, err := token.NewVerifier(cfg.WebchannelSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token verifier")
	}

	var messageRepo repository.MessageRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		cancel()
		log.Info().Msg("database connected")

		messageRepo = repository.NewMessageRepository(db.DB)
	} else {
		log.Warn().Msg("DATABASE_URL not set: message archiving disabled")
	}

	var rateLimiter middleware.RateLimiter
	if cfg.RedisURL != "" {
		redisClient, err := redisclient.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		rateLimiter = middleware.NewRedisRateLimiter(redisClient.Client)
	} else {
		log.Warn().Msg("REDIS_URL not set: using in-memory rate limiting")
		rateLimiter = middleware.NewMemoryRateLimiter()
	}

	contentCache := cache.New(cfg.CacheTTLs(), time.Duration(cfg.SummaryTTLSeconds)*time.Second)
	tracker := correlation.NewTracker(config.CorrelationTTL)
	sessionRegistry := registry.New()
	pipelineClient := pipeline.NewClient(cfg.PipelineURL, cfg.PipelineSignatureSecret)

	var archive delivery.Archive
	if messageRepo != nil {
		archive = messageRepo
	}
	coordinator := delivery.NewCoordinator(tracker, sessionRegistry, contentCache, pipelineClient, archive)

	adminAuthMiddleware := middleware.NewAdminAuthMiddleware(cfg.AdminToken)
	signatureMiddleware := middleware.NewPipelineSignatureMiddleware(cfg.PipelineSignatureSecret)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(rateLimiter, config.DefaultRateLimitPerMin, "api")

	wsHandler := ws.NewHandler(verifier, sessionRegistry, coordinator)
	callbackHandler := handler.NewCallbackHandler(coordinator)
	contentHandler := handler.NewContentHandler(contentCache, pipelineClient)

	var messageLister handler.MessageLister
	if messageRepo != nil {
		messageLister = messageRepo
	}
	adminHandler := handler.NewAdminHandler(contentCache, sessionRegistry, messageLister)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// The duplex endpoint stays outside the request timeout; connections are
	// expected to outlive it.
	r.Get("/v1/channel", wsHandler.ServeHTTP)

	r.Route("/v1/content", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/{kind}", contentHandler.ServeHTTP)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(signatureMiddleware.Handler)
		r.Post("/callback", callbackHandler.ServeHTTP)
	})

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(adminAuthMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", adminHandler.Routes())
	})

	sweepJob := jobs.NewSweepJob(config.SweepJobInterval)
	sweepJob.Add("correlation", tracker)
	sweepJob.Add("cache", contentCache)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// WriteTimeout stays 0 so long-lived duplex connections are not cut.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
