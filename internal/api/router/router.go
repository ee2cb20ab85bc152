package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stretchops/studio-automation/internal/http/handlers"
	httpmiddleware "github.com/stretchops/studio-automation/internal/http/middleware"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Automation         *handlers.AutomationHandler
	Credentials        *handlers.CredentialsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// SubmitRatePerSec throttles job submission per client IP; zero
	// disables the limiter.
	SubmitRatePerSec float64
	SubmitBurst      int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Automation.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/automation", func(r chi.Router) {
		r.Group(func(submit chi.Router) {
			if cfg.SubmitRatePerSec > 0 {
				burst := cfg.SubmitBurst
				if burst <= 0 {
					burst = 5
				}
				submit.Use(httpmiddleware.RateLimit(cfg.SubmitRatePerSec, burst))
			}
			submit.Post("/bookings/sync", cfg.Automation.SyncBookings)
			submit.Post("/notes", cfg.Automation.SubmitNotes)
			submit.Post("/logoff", cfg.Automation.LogOff)
			if cfg.Credentials != nil {
				submit.Post("/credentials/validate", cfg.Credentials.Validate)
			}
		})
		r.Get("/jobs/{jobID}", cfg.Automation.GetJob)
	})

	return r
}
