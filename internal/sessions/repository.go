package sessions

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/shared"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL session store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create persists a new session record.
func (s *PGStore) Create(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua) VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.UserID,
		pgtype.Timestamptz{Time: sess.CreatedAt.UTC(), Valid: true},
		pgtype.Timestamptz{Time: sess.ExpiresAt.UTC(), Valid: true},
		pgtype.Text{String: sess.IP, Valid: sess.IP != ""},
		pgtype.Text{String: sess.UA, Valid: sess.UA != ""},
	)
	return err
}

// Get fetches a session by id.
func (s *PGStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sess      Session
		createdAt pgtype.Timestamptz
		expiresAt pgtype.Timestamptz
		revokedAt pgtype.Timestamptz
		ip, ua    pgtype.Text
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, expires_at, revoked_at, ip, ua FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.UserID, &createdAt, &expiresAt, &revokedAt, &ip, &ua)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	sess.CreatedAt = createdAt.Time
	sess.ExpiresAt = expiresAt.Time
	if revokedAt.Valid {
		t := revokedAt.Time
		sess.RevokedAt = &t
	}
	sess.IP = ip.String
	sess.UA = ua.String
	return &sess, nil
}

// Revoke marks a session revoked. Revoking an unknown session is ErrNotFound.
func (s *PGStore) Revoke(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, pgtype.Timestamptz{Time: at.UTC(), Valid: true})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RevokeAllForUser revokes every live session owned by the user.
func (s *PGStore) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, pgtype.Timestamptz{Time: at.UTC(), Valid: true})
	return err
}

// DeleteExpired removes sessions whose validity window ended before the cutoff.
func (s *PGStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1`,
		pgtype.Timestamptz{Time: before.UTC(), Valid: true})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PGStore)(nil)
