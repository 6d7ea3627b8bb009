package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/httpx"
	"github.com/atriumhq/atrium/internal/sessions"
	"github.com/atriumhq/atrium/internal/shared"
)

// WorkspaceParam is the route parameter carrying the target tenant id.
const WorkspaceParam = "workspaceID"

// Gate intercepts requests, extracts the caller's identity claims and
// applies either the default policy (session validity, plus membership
// existence when a workspace is addressed) or a named
// securableItem:operation policy delegated to the Checker. Failure paths
// never reveal why a request was denied.
type Gate struct {
	checker     *Checker
	sessions    *sessions.Manager
	users       UserDirectory
	memberships MembershipSource
	logger      *slog.Logger
	cookieName  string
	metrics     DecisionRecorder
}

// DecisionRecorder counts gate outcomes.
type DecisionRecorder interface {
	RecordDecision(policy string, allowed bool)
}

// NewGate wires the gate's collaborators. cookieName identifies the
// session cookie; metrics may be nil.
func NewGate(checker *Checker, manager *sessions.Manager, dir UserDirectory, memberships MembershipSource, logger *slog.Logger, cookieName string, metrics DecisionRecorder) *Gate {
	return &Gate{
		checker:     checker,
		sessions:    manager,
		users:       dir,
		memberships: memberships,
		logger:      logger,
		cookieName:  cookieName,
		metrics:     metrics,
	}
}

// WithIdentity resolves the session cookie into explicit identity claims
// and stores them in the request context. Requests without a resolvable
// session proceed anonymously; the policy middlewares deny them.
func (g *Gate) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(g.cookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := g.sessions.Resolve(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				g.logger.Error("resolve session", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		identity := &shared.Identity{
			UserID:    sess.UserID,
			SessionID: sess.ID,
			Language:  shared.ParseLanguage(r.Header.Get("Accept-Language")),
		}
		if user, err := g.users.Get(r.Context(), sess.UserID); err == nil {
			identity.IsPlatformAdmin = user.IsPlatformAdmin
		}
		ctx := shared.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession applies the default policy: the (user, session) pair must
// validate, and when the route addresses a workspace the user must hold
// some membership row there, any status.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := shared.IdentityFromContext(r.Context())
		if identity == nil {
			g.record("default", false)
			unauthorized(w)
			return
		}
		live, err := g.sessions.Exists(r.Context(), identity.UserID, identity.SessionID)
		if err != nil {
			g.logger.Error("default policy session check", slog.Any("error", err))
		}
		if err != nil || !live {
			g.record("default", false)
			unauthorized(w)
			return
		}
		if workspaceID := workspaceFromRoute(r); workspaceID != nil {
			member, err := g.memberships.HasMembership(r.Context(), *workspaceID, identity.UserID)
			if err != nil {
				g.logger.Error("default policy membership check", slog.Any("error", err))
			}
			if err != nil || !member {
				g.record("default", false)
				forbidden(w)
				return
			}
		}
		g.record("default", true)
		next.ServeHTTP(w, r)
	})
}

// Require applies a named securableItem:operation policy by delegating
// wholesale to the Checker with the extracted parameters.
func (g *Gate) Require(item, operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				g.record(item+":"+operation, false)
				unauthorized(w)
				return
			}
			allowed, err := g.checker.Check(r.Context(), identity.UserID, identity.SessionID,
				item, operation, workspaceFromRoute(r))
			if err != nil || !allowed {
				g.record(item+":"+operation, false)
				forbidden(w)
				return
			}
			g.record(item+":"+operation, true)
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) record(policy string, allowed bool) {
	if g.metrics != nil {
		g.metrics.RecordDecision(policy, allowed)
	}
}

// workspaceFromRoute resolves the target tenant from the routed path.
func workspaceFromRoute(r *http.Request) *int64 {
	raw := chi.URLParam(r, WorkspaceParam)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// WorkspaceIDFromRequest exposes the routed tenant id to handlers.
func WorkspaceIDFromRequest(r *http.Request) (int64, bool) {
	id := workspaceFromRoute(r)
	if id == nil {
		return 0, false
	}
	return *id, true
}

// IdentityFromRequest exposes the verified identity to handlers.
func IdentityFromRequest(r *http.Request) (*shared.Identity, bool) {
	identity := shared.IdentityFromContext(r.Context())
	return identity, identity != nil
}

func unauthorized(w http.ResponseWriter) {
	httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "")
}

func forbidden(w http.ResponseWriter) {
	httpx.Problem(w, http.StatusForbidden, http.StatusText(http.StatusForbidden), "")
}
