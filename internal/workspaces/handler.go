package workspaces

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

// Policy attaches a named securableItem:operation gate to a route group.
type Policy interface {
	Require(item, operation string) func(http.Handler) http.Handler
}

// RolesMounter mounts the workspace-scoped role routes under a workspace
// subtree.
type RolesMounter interface {
	MountRoutes(r chi.Router)
}

// Handler manages workspace and membership endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	audit    *audit.Logger
	validate *validator.Validate
	policy   Policy
	roles    RolesMounter
}

// NewHandler builds Handler instance. roles mounts the workspace role
// management routes inside each workspace subtree.
func NewHandler(logger *slog.Logger, service *Service, auditLog *audit.Logger, policy Policy, roles RolesMounter) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		audit:    auditLog,
		validate: validator.New(),
		policy:   policy,
		roles:    roles,
	}
}

// MountRoutes registers the workspace subtree. The default session policy
// is already applied by the router; groups below add the named policies.
// Listing, invitation processing and leaving stay on the default policy:
// a user acting on their own membership needs no grant beyond a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(catalog.ItemWorkspace, catalog.OpAdd))
		r.Post("/", h.create)
	})
	r.Route("/{workspaceID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/members", h.members)
		r.Post("/members/invitations/process", h.processInvitation)
		r.Post("/members/leave", h.leave)
		r.Group(func(r chi.Router) {
			r.Use(h.policy.Require(catalog.ItemWorkspace, catalog.OpModify))
			r.Put("/", h.modify)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.policy.Require(catalog.ItemWorkspace, catalog.OpDelete))
			r.Delete("/", h.remove)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.policy.Require(catalog.ItemWorkspace, catalog.OpModUser))
			r.Post("/members/invitations", h.invite)
			r.Delete("/members/{userID}", h.removeMember)
			r.Put("/members/{userID}/status", h.changeStatus)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.policy.Require(catalog.ItemWSRole, catalog.OpAssign))
			r.Post("/members/{userID}/roles", h.assignRole)
			r.Delete("/members/{userID}/roles/{name}", h.removeRole)
		})
		if h.roles != nil {
			r.Route("/roles", h.roles.MountRoutes)
		}
	})
}

type workspaceDTO struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreateDate  time.Time `json:"createDate"`
	IsPublic    bool      `json:"isPublic"`
	Active      bool      `json:"active"`
	Order       int       `json:"order"`
}

type membershipDTO struct {
	WorkspaceID int64      `json:"workspaceId"`
	UserID      int64      `json:"userId"`
	Status      string     `json:"status"`
	InviteDate  time.Time  `json:"inviteDate"`
	MemberFrom  *time.Time `json:"memberFrom,omitempty"`
}

func toWorkspaceDTO(ws Workspace) workspaceDTO {
	return workspaceDTO{
		ID:          ws.ID,
		OwnerID:     ws.OwnerID,
		Name:        ws.Name,
		Description: ws.Description,
		CreateDate:  ws.CreateDate,
		IsPublic:    ws.IsPublic,
		Active:      ws.Active,
		Order:       ws.Order,
	}
}

func toMembershipDTO(m Membership) membershipDTO {
	return membershipDTO{
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		Status:      string(m.Status),
		InviteDate:  m.InviteDate,
		MemberFrom:  m.MemberFrom,
	}
}

type createWorkspaceRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    bool   `json:"isPublic"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req createWorkspaceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ws, err := h.service.CreateWorkspace(r.Context(), identity.UserID, req.Name, req.Description, req.IsPublic)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.create", ws.ID)
	httpx.JSON(w, http.StatusCreated, toWorkspaceDTO(ws))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	all, err := h.service.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("list workspaces", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]workspaceDTO, len(all))
	for i, ws := range all {
		out[i] = toWorkspaceDTO(ws)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := routedWorkspace(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	ws, err := h.service.GetWorkspace(r.Context(), workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toWorkspaceDTO(*ws))
}

type modifyWorkspaceRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    bool   `json:"isPublic"`
	Active      bool   `json:"active"`
	Order       int    `json:"order"`
}

func (h *Handler) modify(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := routedWorkspace(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req modifyWorkspaceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ws, err := h.service.GetWorkspace(r.Context(), workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ws.Name = req.Name
	ws.Description = req.Description
	ws.IsPublic = req.IsPublic
	ws.Active = req.Active
	ws.Order = req.Order
	if err := h.service.ModifyWorkspace(r.Context(), *ws); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.modify", workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := routedWorkspace(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.DeleteWorkspace(r.Context(), workspaceID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.delete", workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := routedWorkspace(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	all, err := h.service.Memberships(r.Context(), workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]membershipDTO, len(all))
	for i, m := range all {
		out[i] = toMembershipDTO(m)
	}
	httpx.JSON(w, http.StatusOK, out)
}

type inviteRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Notify bool   `json:"notify"`
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	workspaceID, ok := routedWorkspace(r)
	if identity == nil || !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Invite(r.Context(), workspaceID, identity.UserID, req.Email, req.Notify); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.invite", workspaceID)
	w.WriteHeader(http.StatusCreated)
}

type processInvitationRequest struct {
	Reject bool `json:"reject"`
}

func (h *Handler) processInvitation(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	workspaceID, ok := routedWorkspace(r)
	if identity == nil || !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req processInvitationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.service.ProcessInvitation(r.Context(), workspaceID, identity.UserID, req.Reject); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	workspaceID, ok := routedWorkspace(r)
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if identity == nil || !ok || err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.RemoveMember(r.Context(), workspaceID, identity.UserID, targetID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.member.remove", workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	workspaceID, ok := routedWorkspace(r)
	if identity == nil || !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.Leave(r.Context(), workspaceID, identity.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := routedWorkspace(r)
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if !ok || err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req changeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ChangeMemberStatus(r.Context(), workspaceID, targetID, MembershipStatus(req.Status)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.member.status", workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

type assignRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := routedWorkspace(r)
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if !ok || err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AddUserToRole(r.Context(), workspaceID, targetID, req.Role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.role.assign", workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := routedWorkspace(r)
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if !ok || err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.RemoveUserFromRole(r.Context(), workspaceID, targetID, chi.URLParam(r, "name")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "workspace.role.remove", workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) record(r *http.Request, action string, workspaceID int64) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		ActorID:  identity.UserID,
		Action:   action,
		Entity:   "workspace",
		EntityID: strconv.FormatInt(workspaceID, 10),
	})
}

func routedWorkspace(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "workspaceID"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
