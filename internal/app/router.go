package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/weighline/weighline/internal/appupdate"
	"github.com/weighline/weighline/internal/auth"
	"github.com/weighline/weighline/internal/devices"
	"github.com/weighline/weighline/internal/observability"
	"github.com/weighline/weighline/internal/rollup"
	"github.com/weighline/weighline/internal/scan"
	syncapi "github.com/weighline/weighline/internal/sync"
	"github.com/weighline/weighline/internal/weighing"
	"github.com/weighline/weighline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	WeighingHandler  *weighing.Handler
	ScanHandler      *scan.Handler
	RollupHandler    *rollup.Handler
	DevicesHandler   *devices.Handler
	AppUpdateHandler *appupdate.Handler
	SyncHandler      *syncapi.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Weighline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/weighings", params.WeighingHandler.MountRoutes)
		r.Route("/scan", params.ScanHandler.MountRoutes)
		params.RollupHandler.MountRoutes(r)
		if params.DevicesHandler != nil {
			r.Route("/devices", params.DevicesHandler.MountRoutes)
		}
		if params.AppUpdateHandler != nil {
			r.Route("/app-update", params.AppUpdateHandler.MountRoutes)
		}
		if params.SyncHandler != nil {
			r.Route("/sync", params.SyncHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
