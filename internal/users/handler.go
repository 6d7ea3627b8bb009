package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/httpx"
	"github.com/atriumhq/atrium/internal/shared"
)

// SessionRevoker invalidates every live session of one user.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID int64) error
}

// Handler manages user directory endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	revoker SessionRevoker
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, revoker SessionRevoker) *Handler {
	return &Handler{logger: logger, service: service, revoker: revoker}
}

// MountRoutes registers user routes. The router gates them with user:view
// and user:modify policies.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{userID}", h.get)
}

// MountAdminRoutes registers mutations gated by user:modify.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Delete("/{userID}/sessions", h.revokeSessions)
}

type userDTO struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Status          Status    `json:"status"`
	IsPlatformAdmin bool      `json:"isPlatformAdmin"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toDTO(user User) userDTO {
	return userDTO{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Status:          user.Status,
		IsPlatformAdmin: user.IsPlatformAdmin,
		CreatedAt:       user.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]userDTO, len(all))
	for i, user := range all {
		out[i] = toDTO(user)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(*user))
}

func (h *Handler) revokeSessions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.revoker.RevokeUserSessions(r.Context(), id); err != nil {
		h.logger.Error("revoke sessions", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
