package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caravel-erp/caravel/internal/integration"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	"github.com/caravel-erp/caravel/internal/ledger/journal"
	"github.com/caravel-erp/caravel/internal/ledger/projector"
	"github.com/caravel-erp/caravel/internal/ledger/reports"
	"github.com/caravel-erp/caravel/internal/observability"
	"github.com/caravel-erp/caravel/internal/party"
	"github.com/caravel-erp/caravel/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Pool   *pgxpool.Pool

	AccountsHandler    *accounts.Handler
	JournalHandler     *journal.Handler
	ProjectorHandler   *projector.Handler
	ReportsHandler     *reports.Handler
	PartyHandler       *party.Handler
	IntegrationHandler *integration.Handler
	JobsHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the console backend.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				params.Logger.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/ledger", func(lr chi.Router) {
		if params.AccountsHandler != nil || params.ProjectorHandler != nil {
			lr.Route("/accounts", func(ar chi.Router) {
				if params.AccountsHandler != nil {
					params.AccountsHandler.MountRoutes(ar)
				}
				if params.ProjectorHandler != nil {
					params.ProjectorHandler.MountRoutes(ar)
				}
			})
		}
		if params.JournalHandler != nil {
			lr.Route("/journal", params.JournalHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			lr.Route("/reports", params.ReportsHandler.MountRoutes)
		}
	})
	if params.PartyHandler != nil {
		r.Route("/parties", params.PartyHandler.MountRoutes)
	}
	if params.IntegrationHandler != nil {
		r.Route("/events", params.IntegrationHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
