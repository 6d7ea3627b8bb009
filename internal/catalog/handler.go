package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/httpx"
)

// Handler serves the static catalogs to authenticated clients, for
// rendering permission matrices.
type Handler struct {
	provider Provider
}

// NewHandler builds Handler instance.
func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/global", h.global)
	r.Get("/workspace", h.workspace)
}

func (h *Handler) global(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.provider.GlobalItems())
}

func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.provider.WorkspaceItems())
}
