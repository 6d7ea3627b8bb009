package roles

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atriumhq/atrium/internal/audit"
	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/platform/httpx"
	"github.com/atriumhq/atrium/internal/shared"
)

// ScopeResolver derives the role scope from the routed request, so the
// same handler serves the global mount and the per-workspace mount.
type ScopeResolver func(r *http.Request) (Scope, error)

// Policy attaches a named securableItem:operation gate to a route group.
type Policy interface {
	Require(item, operation string) func(http.Handler) http.Handler
}

// Handler manages role management endpoints for one mount.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	audit    *audit.Logger
	validate *validator.Validate
	scope    ScopeResolver
	policy   Policy
	item     string
}

// NewHandler builds a handler gating its routes with operations on the
// given securable item (catalog.ItemRole for the global mount,
// catalog.ItemWSRole for the workspace mount).
func NewHandler(logger *slog.Logger, service *Service, auditLog *audit.Logger, scope ScopeResolver, policy Policy, item string) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		audit:    auditLog,
		validate: validator.New(),
		scope:    scope,
		policy:   policy,
		item:     item,
	}
}

// MountRoutes registers role routes relative to the mount point, grouped
// by the catalog operation each requires.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(h.item, catalog.OpView))
		r.Get("/", h.list)
		r.Get("/{name}", h.info)
		r.Get("/{name}/permissions", h.permissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(h.item, catalog.OpAdd))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(h.item, catalog.OpModify))
		r.Put("/{name}", h.modify)
		r.Put("/{name}/permissions", h.setPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(h.item, catalog.OpDelete))
		r.Delete("/{name}", h.remove)
	})
}

// MountAssignmentRoutes registers global role assignment, gated by
// role:assign. Only the global mount uses this; workspace assignment goes
// through the membership engine.
func (h *Handler) MountAssignmentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(h.item, catalog.OpAssign))
		r.Post("/{name}/assignments", h.assign)
		r.Delete("/{name}/assignments/{userID}", h.unassign)
	})
}

type roleDTO struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	WorkspaceID *int64       `json:"workspaceId,omitempty"`
	Kind        Kind         `json:"kind"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func toDTO(role Role) roleDTO {
	perms := role.Permissions
	if perms == nil {
		perms = []Permission{}
	}
	return roleDTO{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		WorkspaceID: role.WorkspaceID,
		Kind:        role.Kind,
		Permissions: perms,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	all, err := h.service.GetAllRoles(r.Context(), scope)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleDTO, len(all))
	for i, role := range all {
		out[i] = toDTO(role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role := Role{
		Name:        req.Name,
		Description: req.Description,
		WorkspaceID: scope.WorkspaceID(),
		Kind:        KindNormal,
	}
	created, err := h.service.AddRole(r.Context(), role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.create", created.Name)
	httpx.JSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRoleInfo(r.Context(), scope, chi.URLParam(r, "name"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDTO(role))
}

func (h *Handler) modify(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.service.ModifyRole(r.Context(), scope, name, Role{Name: req.Name, Description: req.Description}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.modify", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.service.DeleteRole(r.Context(), scope, name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.delete", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.RoleSecurableItemsStatus(r.Context(), scope, chi.URLParam(r, "name"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var items []catalog.Item
	if err := httpx.DecodeJSON(r, &items); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.service.SetRoleSecurableItemsStatus(r.Context(), scope, name, items); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.permissions.replace", name)
	w.WriteHeader(http.StatusNoContent)
}

type assignmentRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.service.AssignGlobalRole(r.Context(), req.UserID, name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.assign", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.service.RemoveGlobalRole(r.Context(), userID, name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.unassign", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) record(r *http.Request, action, roleName string) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		ActorID:  identity.UserID,
		Action:   action,
		Entity:   "role",
		EntityID: roleName,
	})
}

// GlobalScopeResolver always yields the global scope.
func GlobalScopeResolver(*http.Request) (Scope, error) {
	return GlobalScope(), nil
}

// WorkspaceScopeResolver yields the scope of the routed workspace.
func WorkspaceScopeResolver(param string) ScopeResolver {
	return func(r *http.Request) (Scope, error) {
		raw := chi.URLParam(r, param)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Scope{}, shared.ErrNotFound
		}
		return WorkspaceScope(id), nil
	}
}
