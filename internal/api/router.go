package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hautor/secretos/internal/api/middleware"
	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/exchange"
	"github.com/hautor/secretos/internal/handlers"
	"github.com/hautor/secretos/internal/store"
)

// NewRouter creates and configures the HTTP router.
// redisClient may be nil; rate limiting is then disabled.
func NewRouter(cfg *config.Config, logger zerolog.Logger, svc *exchange.Service, st store.SecretStore, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (only when Redis is configured)
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger, cfg.RateLimitWhitelist)
		r.Use(limiter.Middleware)
	}

	// CORS - anonymous browser clients call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(svc)
	health := handlers.NewHealthHandler(h, st, redisClient)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", health.Health)
	r.Get("/stats", h.Stats)

	// Exchange surface. Text bodies are small; audio gets its own cap.
	r.With(middleware.MaxBodySize(8*1024)).Post("/secret", h.Submit)
	r.With(middleware.MaxBodySize(cfg.AudioMaxBytes)).Post("/secret/audio", h.SubmitAudio)
	r.Get("/secret", h.Poll)
	r.Get("/audio/{ref}", h.Audio)

	return r
}
