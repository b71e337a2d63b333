package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Sessions  *Manager
	Readiness observability.ReadinessChecks
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// session and authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	a := &api{sessions: deps.Sessions, logger: logger}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	r.Use(deps.Metrics.MetricsMiddleware)

	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(SessionID(cfg.Session.Header))
		r.Use(Authenticate(cfg.Identity))
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Get("/context", a.handleGetContext)
		r.Put("/context/master-topic", a.handleSetMasterTopic)
		r.Put("/context/master-record-kind", a.handleSetMasterRecordKind)
		r.Put("/context/master-record", a.handleSetMasterRecord)
		r.Put("/context/sidebar", a.handleSetSidebar)

		r.Route("/pages/{kind}", func(r chi.Router) {
			r.Get("/", a.handleGetPage)
			r.Post("/select", a.handleSelect)
			r.Post("/mode", a.handleMode)
			r.Post("/actions/{command}", a.handleAction)
			r.Post("/link", a.handleLink)
			r.Get("/layout", a.handleGetLayout)
			r.Put("/layout", a.handlePutLayout)
		})
	})

	return r
}
