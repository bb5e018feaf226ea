package main

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/incidentops/analysis-gateway/internal/admin"
	"github.com/incidentops/analysis-gateway/internal/api"
	"github.com/incidentops/analysis-gateway/internal/auth"
	"github.com/incidentops/analysis-gateway/internal/cache"
	"github.com/incidentops/analysis-gateway/internal/config"
	"github.com/incidentops/analysis-gateway/internal/db"
	"github.com/incidentops/analysis-gateway/internal/feedback"
	"github.com/incidentops/analysis-gateway/internal/gemini"
	"github.com/incidentops/analysis-gateway/internal/ratelimit"
	"github.com/incidentops/analysis-gateway/internal/splunk"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// One Redis client, shared by the cache, the rate limiter and the
	// feedback store; closed here at shutdown.
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	analysisCache := cache.New(redisClient, cfg.CacheTTL, logger)
	limiter := ratelimit.New(redisClient, logger)
	feedbackStore := feedback.New(redisClient, logger)

	// App registry and audit log are optional; without a database the
	// gateway runs with the configured default quota and no token endpoint.
	var (
		registry api.AppRegistry
		auditor  api.Auditor
		dbPing   api.Pinger
		database *db.DB
	)
	if cfg.DatabaseURL != "" {
		database, err = db.NewDB(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()
		registry = database
		auditor = database
		dbPing = database
	} else {
		logger.Warn().Msg("DATABASE_URL not set, running without app registry")
	}

	splunkClient := splunk.New(cfg.SplunkURL, cfg.SplunkUsername, cfg.SplunkPassword, cfg.SplunkVerifyTLS, logger)

	geminiClient, err := gemini.New(gemini.Config{
		APIKey:      cfg.GoogleAPIKey,
		Model:       cfg.GeminiModel,
		Temperature: cfg.GeminiTemperature,
		MaxTokens:   cfg.GeminiMaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize Gemini client")
	}

	// Initialize router
	router := mux.NewRouter()
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	handler := api.NewHandler(api.Options{
		Cache:             analysisCache,
		Limiter:           limiter,
		Feedback:          feedbackStore,
		Analyzer:          geminiClient,
		Incidents:         splunkClient,
		Registry:          registry,
		Auditor:           auditor,
		Database:          dbPing,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          cfg.TokenTTL,
		Logger:            logger,
	})
	handler.RegisterRoutes(router, authMiddleware)

	if database != nil {
		adminHandler := admin.NewAdminHandler(database, feedbackStore, logger)
		adminHandler.RegisterRoutes(router)
	}

	logger.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.ServerPort, router); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
