package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/observability"
	"github.com/meshfin/financeiro-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups what the router dispatches to. A nil Auth disables the API routes.
type Services struct {
	Reconciliation *service.ReconciliationService
	Establishments *service.EstablishmentService
	Terminals      *service.TerminalService
	Users          *service.UserService
	Auth           *service.AuthService
	DB             Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.DB))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/api/v1", func(r chi.Router) {
		if svcs.Auth == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "API indisponível")
			}))
			return
		}

		r.Post("/login", loginHandler(svcs.Auth, logger))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svcs.Auth, logger))

			r.Post("/logout", logoutHandler(svcs.Auth, logger))
			r.Get("/metrics/aggregation", aggregationMetricsHandler(metrics))

			r.Route("/usuarios", func(r chi.Router) {
				r.Get("/", listUsersHandler(svcs.Users, logger))
				r.Post("/", createUserHandler(svcs.Users, logger))
				r.Get("/{id}", getUserHandler(svcs.Users, logger))
				r.Put("/{id}", updateUserHandler(svcs.Users, logger))
				r.Delete("/{id}", deleteUserHandler(svcs.Users, logger))
			})

			r.Route("/terminais", func(r chi.Router) {
				r.Get("/", listTerminalsHandler(svcs.Terminals, logger))
				r.Post("/", createTerminalHandler(svcs.Terminals, logger))
				r.Get("/{id}", getTerminalHandler(svcs.Terminals, logger))
				r.Put("/{id}", updateTerminalHandler(svcs.Terminals, logger))
				r.Delete("/{id}", deleteTerminalHandler(svcs.Terminals, logger))
			})

			r.Route("/estabelecimentos", func(r chi.Router) {
				r.Get("/", listEstablishmentsHandler(svcs.Establishments, logger))
				r.Post("/", createEstablishmentHandler(svcs.Establishments, logger))
				r.Get("/{id}", getEstablishmentHandler(svcs.Establishments, logger))
				r.Put("/{id}", updateEstablishmentHandler(svcs.Establishments, logger))
				r.Delete("/{id}", deleteEstablishmentHandler(svcs.Establishments, logger))
			})

			r.Route("/mesh", func(r chi.Router) {
				r.Post("/transacao/{startDate}/{endDate}",
					transactionsHandler("POST /api/v1/mesh/transacao", svcs.Reconciliation.MeshTransactions, logger))
			})

			r.Route("/use", func(r chi.Router) {
				r.Post("/transacao/{startDate}/{endDate}",
					transactionsHandler("POST /api/v1/use/transacao", svcs.Reconciliation.UseTransactions, logger))
				r.Post("/repasse/{id}", payoutHandler(svcs.Reconciliation, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "financeiro-api", Status: "healthy", LastChecked: now},
		}

		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: "database", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		code := http.StatusOK
		if overallStatus == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, domain.HealthStatus{Status: overallStatus, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func aggregationMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, "Métricas de agregação", metrics.GetAggregationSnapshot())
	}
}
