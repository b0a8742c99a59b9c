/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Logging:    One logrus line per request
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the web client
  6. Roles:      X-Role header -> permission grants on the context

ROUTE GROUPS:
  /healthz              Store ping, no grants needed
  /api/simCards/*       Cards, import, summary
  /api/transactions/*   Ledger events
  /api/customers/*      Customers
  /api/simTypes/*       Sim types
  /api/dashboard        Overview
  /api/scenarios/*      Demo data loaders

SECURITY NOTE:
  Authentication happens upstream. The gateway sets X-Role (admin,
  operator, viewer); requests without a known role carry no grants and
  every inventory operation answers 403.

SEE ALSO:
  - handlers.go: Handler implementations
  - scenarios.go: Demo data
  - access/roles.go: Role -> permission table
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/warp/sim-inventory/access"
)

// RoleHeader carries the caller's role, set by the upstream gateway.
const RoleHeader = "X-Role"

// RouterOptions tunes NewRouter.
type RouterOptions struct {
	// CORSOrigins defaults to any origin when empty.
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RoleHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(withRoleGrants)

		r.Route("/simCards", func(r chi.Router) {
			r.Post("/", h.CreateSimCard)
			r.Get("/", h.ListSimCards)
			r.Post("/import", h.ImportSimCards)
			r.Post("/paginate", h.PaginateSimCards)
			r.Get("/summary", h.SimCardSummary)
			r.Get("/{id}", h.GetSimCard)
			r.Patch("/{id}", h.UpdateSimCard)
			r.Patch("/{id}/change-customer", h.ChangeCustomer)
			r.Delete("/{id}", h.DeleteSimCard)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Get("/", h.ListTransactions)
			r.Post("/search", h.SearchTransactions)
			r.Get("/customer/{id}/report", h.CustomerReport)
			r.Get("/{id}", h.GetTransaction)
			r.Patch("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.CreateCustomer)
			r.Get("/", h.ListCustomers)
			r.Get("/{id}", h.GetCustomer)
			r.Patch("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})

		r.Route("/simTypes", func(r chi.Router) {
			r.Post("/", h.CreateSimType)
			r.Get("/", h.ListSimTypes)
			r.Get("/{id}", h.GetSimType)
			r.Patch("/{id}", h.UpdateSimType)
			r.Delete("/{id}", h.DeleteSimType)
		})

		r.Get("/dashboard", h.Dashboard)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// withRoleGrants attaches the permissions of the X-Role role. Unknown roles
// get none.
func withRoleGrants(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := strings.ToLower(strings.TrimSpace(r.Header.Get(RoleHeader)))
		if perms := access.RolePermissions(role); len(perms) > 0 {
			r = r.WithContext(access.WithGrants(r.Context(), perms...))
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"role":       r.Header.Get(RoleHeader),
				}).Info("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
