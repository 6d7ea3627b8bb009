package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/db"
	"github.com/atriumhq/atrium/internal/shared"
)

// RepositoryPort defines data access methods for scoped roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, scope Scope) ([]Role, error)
	FindByName(ctx context.Context, scope Scope, name string) (*Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, id int64, name, description string) error
	Delete(ctx context.Context, id int64) error
	ReplacePermissions(ctx context.Context, roleID int64, perms []Permission) error
	AssignGlobal(ctx context.Context, userID, roleID int64) error
	RemoveGlobal(ctx context.Context, userID, roleID int64) error
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	RolesForWorkspaceUser(ctx context.Context, workspaceID, userID int64) ([]Role, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, workspace_id, kind, created_at, updated_at`

func scopeClause(scope Scope, arg int) (string, []any) {
	if scope.IsGlobal() {
		return "workspace_id IS NULL", nil
	}
	return fmt.Sprintf("workspace_id = $%d", arg), []any{*scope.WorkspaceID()}
}

// ListRoles returns every role in scope with permissions eagerly loaded.
func (r *Repository) ListRoles(ctx context.Context, scope Scope) ([]Role, error) {
	clause, args := scopeClause(scope, 1)
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE `+clause+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		perms, err := r.permissionsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Permissions = perms
	}
	return out, nil
}

// FindByName fetches a role by exact name within scope, with permissions.
func (r *Repository) FindByName(ctx context.Context, scope Scope, name string) (*Role, error) {
	clause, args := scopeClause(scope, 2)
	args = append([]any{name}, args...)
	row := r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = $1 AND `+clause, args...)
	role, err := scanRole(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	perms, err := r.permissionsFor(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

// Create inserts a role; the store assigns the id.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, workspace_id, kind)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+roleColumns,
		role.Name, role.Description, role.WorkspaceID, role.Kind)
	created, err := scanRole(row)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Role{}, shared.ErrDuplicateName
		}
		return Role{}, err
	}
	created.Permissions = []Permission{}
	return created, nil
}

// Update renames a role and updates its description, preserving id and
// permission set.
func (r *Repository) Update(ctx context.Context, id int64, name, description string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1`,
		id, name, description)
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

// Delete removes a role and cascades its permission rows in one
// transaction. User-role links are intentionally left behind; every
// effective-permission query joins through roles, so a dangling link
// contributes nothing.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ReplacePermissions clears and reinserts the role's permission set inside
// a single transaction, so a concurrent reader never observes the role
// with zero permissions mid-replace.
func (r *Repository) ReplacePermissions(ctx context.Context, roleID int64, perms []Permission) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, p := range perms {
			if _, err := tx.Exec(ctx,
				`INSERT INTO permissions (role_id, item, operation) VALUES ($1, $2, $3)
				 ON CONFLICT DO NOTHING`,
				roleID, p.Item, p.Operation); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignGlobal links a global role to a user.
func (r *Repository) AssignGlobal(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID)
	return err
}

// RemoveGlobal unlinks a global role from a user.
func (r *Repository) RemoveGlobal(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

// RolesForUser returns the user's global roles with permissions loaded.
func (r *Repository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.description, r.workspace_id, r.kind, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 AND r.workspace_id IS NULL
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	return r.collectRoles(ctx, rows)
}

// RolesForWorkspaceUser returns the roles assigned to the user in the
// workspace with permissions loaded.
func (r *Repository) RolesForWorkspaceUser(ctx context.Context, workspaceID, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.description, r.workspace_id, r.kind, r.created_at, r.updated_at
		 FROM roles r
		 JOIN workspace_user_roles wur ON wur.role_id = r.id
		 WHERE wur.workspace_id = $1 AND wur.user_id = $2 AND r.workspace_id = $1
		 ORDER BY r.name`, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	return r.collectRoles(ctx, rows)
}

func (r *Repository) collectRoles(ctx context.Context, rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		perms, err := r.permissionsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Permissions = perms
	}
	return out, nil
}

func (r *Repository) permissionsFor(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item, operation FROM permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []Permission{}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Item, &p.Operation); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role        Role
		workspaceID pgtype.Int8
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&role.ID, &role.Name, &role.Description, &workspaceID,
		&role.Kind, &createdAt, &updatedAt)
	if err != nil {
		return Role{}, err
	}
	if workspaceID.Valid {
		id := workspaceID.Int64
		role.WorkspaceID = &id
	}
	role.CreatedAt = createdAt.Time
	role.UpdatedAt = updatedAt.Time
	return role, nil
}

var _ RepositoryPort = (*Repository)(nil)
