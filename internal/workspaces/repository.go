package workspaces

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/db"
	"github.com/atriumhq/atrium/internal/roles"
	"github.com/atriumhq/atrium/internal/shared"
)

// RepositoryPort defines data access methods for workspaces and memberships.
type RepositoryPort interface {
	CreateWorkspace(ctx context.Context, ws Workspace) (Workspace, error)
	GetWorkspace(ctx context.Context, id int64) (*Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID int64) ([]Workspace, error)
	UpdateWorkspace(ctx context.Context, ws Workspace) error
	DeleteWorkspace(ctx context.Context, id int64) error

	GetMembership(ctx context.Context, workspaceID, userID int64) (*Membership, error)
	CreateMembership(ctx context.Context, m Membership) error
	UpdateMembership(ctx context.Context, m Membership) error
	DeleteMembership(ctx context.Context, workspaceID, userID int64) error
	ListMemberships(ctx context.Context, workspaceID int64) ([]Membership, error)

	AddUserRole(ctx context.Context, link UserRole) error
	RemoveUserRole(ctx context.Context, link UserRole) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWorkspace inserts the workspace, its founding Owner membership,
// the seeded workspace administrator role and the owner's assignment to it,
// all in one transaction. The owner row is never created any other way.
func (r *Repository) CreateWorkspace(ctx context.Context, ws Workspace) (Workspace, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO workspaces (owner_id, name, description, create_date, is_public, active, display_order)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, create_date`,
			ws.OwnerID, ws.Name, ws.Description,
			pgtype.Timestamptz{Time: ws.CreateDate.UTC(), Valid: true},
			ws.IsPublic, ws.Active, ws.Order)
		var createDate pgtype.Timestamptz
		if err := row.Scan(&ws.ID, &createDate); err != nil {
			if db.IsUniqueViolation(err, "") {
				return shared.ErrDuplicateName
			}
			return err
		}
		ws.CreateDate = createDate.Time

		now := pgtype.Timestamptz{Time: ws.CreateDate.UTC(), Valid: true}
		if _, err := tx.Exec(ctx,
			`INSERT INTO workspace_memberships (workspace_id, user_id, status, invite_date, member_from)
			 VALUES ($1, $2, $3, $4, $4)`,
			ws.ID, ws.OwnerID, StatusOwner, now); err != nil {
			return err
		}

		var roleID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, description, workspace_id, kind)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			"Administrator", "Workspace administrator", ws.ID, roles.KindAdministrator).Scan(&roleID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO workspace_user_roles (workspace_id, user_id, role_id) VALUES ($1, $2, $3)`,
			ws.ID, ws.OwnerID, roleID)
		return err
	})
	if err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

const workspaceColumns = `id, owner_id, name, description, create_date, is_public, active, display_order`

// GetWorkspace fetches a workspace by id.
func (r *Repository) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id)
	ws, err := scanWorkspace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// ListWorkspacesForUser returns the workspaces where the user holds any
// membership row, ordered by display order.
func (r *Repository) ListWorkspacesForUser(ctx context.Context, userID int64) ([]Workspace, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.id, w.owner_id, w.name, w.description, w.create_date, w.is_public, w.active, w.display_order
		 FROM workspaces w
		 JOIN workspace_memberships m ON m.workspace_id = w.id
		 WHERE m.user_id = $1
		 ORDER BY w.display_order, w.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// UpdateWorkspace persists mutable workspace attributes.
func (r *Repository) UpdateWorkspace(ctx context.Context, ws Workspace) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE workspaces SET name = $2, description = $3, is_public = $4, active = $5, display_order = $6
		 WHERE id = $1`,
		ws.ID, ws.Name, ws.Description, ws.IsPublic, ws.Active, ws.Order)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return shared.ErrDuplicateName
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteWorkspace removes the workspace and everything scoped to it,
// including the founding Owner membership. This is the only path that
// removes an Owner row.
func (r *Repository) DeleteWorkspace(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM workspace_user_roles WHERE workspace_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM permissions WHERE role_id IN (SELECT id FROM roles WHERE workspace_id = $1)`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM roles WHERE workspace_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM workspace_memberships WHERE workspace_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// GetMembership fetches the membership row for the pair.
func (r *Repository) GetMembership(ctx context.Context, workspaceID, userID int64) (*Membership, error) {
	var (
		m          Membership
		inviteDate pgtype.Timestamptz
		memberFrom pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx,
		`SELECT workspace_id, user_id, status, invite_date, member_from
		 FROM workspace_memberships WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID).
		Scan(&m.WorkspaceID, &m.UserID, &m.Status, &inviteDate, &memberFrom)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	m.InviteDate = inviteDate.Time
	if memberFrom.Valid {
		t := memberFrom.Time
		m.MemberFrom = &t
	}
	return &m, nil
}

// CreateMembership inserts a membership row. The unique index on
// (workspace_id, user_id) serializes concurrent invitations; a violation
// maps to shared.ErrAlreadyMember.
func (r *Repository) CreateMembership(ctx context.Context, m Membership) error {
	var memberFrom pgtype.Timestamptz
	if m.MemberFrom != nil {
		memberFrom = pgtype.Timestamptz{Time: m.MemberFrom.UTC(), Valid: true}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO workspace_memberships (workspace_id, user_id, status, invite_date, member_from)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.WorkspaceID, m.UserID, m.Status,
		pgtype.Timestamptz{Time: m.InviteDate.UTC(), Valid: true}, memberFrom)
	if err != nil && db.IsUniqueViolation(err, "") {
		return shared.ErrAlreadyMember
	}
	return err
}

// UpdateMembership persists status and member_from for the pair.
func (r *Repository) UpdateMembership(ctx context.Context, m Membership) error {
	var memberFrom pgtype.Timestamptz
	if m.MemberFrom != nil {
		memberFrom = pgtype.Timestamptz{Time: m.MemberFrom.UTC(), Valid: true}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE workspace_memberships SET status = $3, member_from = $4
		 WHERE workspace_id = $1 AND user_id = $2`,
		m.WorkspaceID, m.UserID, m.Status, memberFrom)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteMembership removes the row and the user's workspace role links in
// one transaction.
func (r *Repository) DeleteMembership(ctx context.Context, workspaceID, userID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM workspace_user_roles WHERE workspace_id = $1 AND user_id = $2`,
			workspaceID, userID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM workspace_memberships WHERE workspace_id = $1 AND user_id = $2`,
			workspaceID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ListMemberships returns all membership rows of the workspace.
func (r *Repository) ListMemberships(ctx context.Context, workspaceID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT workspace_id, user_id, status, invite_date, member_from
		 FROM workspace_memberships WHERE workspace_id = $1 ORDER BY user_id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		var (
			m          Membership
			inviteDate pgtype.Timestamptz
			memberFrom pgtype.Timestamptz
		)
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Status, &inviteDate, &memberFrom); err != nil {
			return nil, err
		}
		m.InviteDate = inviteDate.Time
		if memberFrom.Valid {
			t := memberFrom.Time
			m.MemberFrom = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddUserRole links a workspace role to a member.
func (r *Repository) AddUserRole(ctx context.Context, link UserRole) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO workspace_user_roles (workspace_id, user_id, role_id)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		link.WorkspaceID, link.UserID, link.RoleID)
	return err
}

// RemoveUserRole unlinks a workspace role from a member.
func (r *Repository) RemoveUserRole(ctx context.Context, link UserRole) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM workspace_user_roles WHERE workspace_id = $1 AND user_id = $2 AND role_id = $3`,
		link.WorkspaceID, link.UserID, link.RoleID)
	return err
}

func scanWorkspace(row pgx.Row) (Workspace, error) {
	var (
		ws         Workspace
		createDate pgtype.Timestamptz
	)
	err := row.Scan(&ws.ID, &ws.OwnerID, &ws.Name, &ws.Description, &createDate,
		&ws.IsPublic, &ws.Active, &ws.Order)
	if err != nil {
		return Workspace{}, err
	}
	ws.CreateDate = createDate.Time
	return ws, nil
}

var _ RepositoryPort = (*Repository)(nil)
