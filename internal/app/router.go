package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atriumhq/atrium/internal/auth"
	"github.com/atriumhq/atrium/internal/authz"
	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/observability"
	"github.com/atriumhq/atrium/internal/roles"
	"github.com/atriumhq/atrium/internal/users"
	"github.com/atriumhq/atrium/internal/workspaces"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Gate              *authz.Gate
	AuthHandler       *auth.Handler
	CatalogHandler    *catalog.Handler
	RolesHandler      *roles.Handler
	UsersHandler      *users.Handler
	WorkspacesHandler *workspaces.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Atrium defaults. Everything
// under /api runs behind the default session policy; handlers layer the
// named item:operation policies on top of it.
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
	r.Use(params.Gate.WithIdentity)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Gate.RequireSession)

		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", func(r chi.Router) {
				params.RolesHandler.MountRoutes(r)
				params.RolesHandler.MountAssignmentRoutes(r)
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(params.Gate.Require(catalog.ItemUser, catalog.OpView))
					params.UsersHandler.MountRoutes(r)
				})
				r.Group(func(r chi.Router) {
					r.Use(params.Gate.Require(catalog.ItemUser, catalog.OpModify))
					params.UsersHandler.MountAdminRoutes(r)
				})
			})
		}
		if params.WorkspacesHandler != nil {
			r.Route("/workspaces", params.WorkspacesHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
