package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/brightcare/dental-booking-bot/internal/http/middleware"
	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	PaymentWebhook http.Handler
	MetricsHandler http.Handler
	// ReportsDir enables serving uploaded medical reports under /reports/.
	ReportsDir string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.PaymentWebhook != nil {
		r.Group(func(webhook chi.Router) {
			if cfg.RateLimitPerSecond > 0 && cfg.RateLimitBurst > 0 {
				webhook.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
			}
			webhook.Post("/webhooks/razorpay", cfg.PaymentWebhook.ServeHTTP)
		})
	}

	if cfg.ReportsDir != "" {
		fs := http.StripPrefix("/reports/", http.FileServer(http.Dir(cfg.ReportsDir)))
		r.Get("/reports/*", fs.ServeHTTP)
	}

	return r
}
