// Package httptransport assembles the public HTTP surface: middleware
// chain, health and metrics endpoints, and the vesting API routes.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustee/internal/vesting/handler"
	"trustee/pkg/platform/httputil"
	"trustee/pkg/platform/middleware/auth"
	"trustee/pkg/platform/middleware/requestid"
	"trustee/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router mounts.
type Deps struct {
	Vesting     *handler.Handler
	Verifier    *auth.Verifier
	Idempotency func(http.Handler) http.Handler
	Logger      *slog.Logger
	Health      func() error
}

// NewRouter wires the middleware chain and all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Verifier, deps.Logger))
		if deps.Idempotency != nil {
			r.Use(deps.Idempotency)
		}
		deps.Vesting.Register(r)
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
