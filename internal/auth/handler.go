package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atriumhq/atrium/internal/platform/httpx"
	"github.com/atriumhq/atrium/internal/shared"
)

// Handler exposes the session lifecycle endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validate   *validator.Validate
	cookieName string
	secure     bool
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cookieName string, secure bool) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		validate:   validator.New(),
		cookieName: cookieName,
		secure:     secure,
	}
}

// MountRoutes registers auth routes. Login is unauthenticated; logout
// requires an identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	UserID    int64     `json:"userId"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess, err := h.service.Login(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.ExpiresAt,
	})
	httpx.JSON(w, http.StatusOK, loginResponse{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.Logout(r.Context(), identity.SessionID); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
