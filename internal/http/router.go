package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/carebook/internal/metrics"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type RouterConfig struct {
	APIToken     string
	Users        UserLookup
	Health       HealthChecker
	Directory    *DirectoryHandler
	Catalog      *CatalogHandler
	Bookings     *BookingHandler
	Logger       *slog.Logger
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health.HealthCheck(ctx); err != nil {
				http.Error(w, "unready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireAPIToken(cfg.APIToken, logger))
		r.Use(IdentifyCaller(logger))

		if cfg.Directory != nil {
			r.Put("/users/me", cfg.Directory.Register)
		}

		r.Group(func(r chi.Router) {
			r.Use(RequirePrincipal(cfg.Users, logger))

			if cfg.Directory != nil {
				r.Get("/users/me", cfg.Directory.Me)
				r.Post("/users/me/elevate", cfg.Directory.Elevate)
				r.Get("/persons/self", cfg.Directory.SelfPerson)
				r.Get("/persons", cfg.Directory.ListPersons)
				r.Post("/persons", cfg.Directory.RegisterPerson)
			}

			if cfg.Catalog != nil {
				r.Get("/activities", cfg.Catalog.List)
				r.Post("/activities", cfg.Catalog.Create)
				r.Get("/activities/{activityID}", cfg.Catalog.Get)
				r.Get("/activities/{activityID}/roster", cfg.Catalog.Roster)
			}

			if cfg.Bookings != nil {
				r.Get("/persons/{personID}/bookings", cfg.Bookings.ListForPerson)
				r.Post("/bookings", cfg.Bookings.Create)
				r.Delete("/bookings/{activityID}/{personID}", cfg.Bookings.Cancel)
				r.Put("/bookings/{activityID}/{personID}/caregiver", cfg.Bookings.AttachCaregiver)
				r.Put("/bookings/{activityID}/{personID}/confirmation", cfg.Bookings.SetConfirmation)
			}
		})
	})

	return r
}
