package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atriumhq/atrium/internal/shared"
)

// Manager issues, revokes and validates sessions. The postgres store is
// authoritative; Redis acts as a read-through cache so the per-request
// validity gate stays off the database on the hot path. Revocation always
// drops the cached entry, so a revoked session never validates.
type Manager struct {
	store Store
	cache *redis.Client
	ttl   time.Duration
	clock func() time.Time
}

type cachedSession struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewManager constructs a Manager. ttl is the validity window granted to
// new sessions.
func NewManager(store Store, cache *redis.Client, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		cache: cache,
		ttl:   ttl,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create issues a new session for the user and returns it.
func (m *Manager) Create(ctx context.Context, userID int64, ip, ua string) (*Session, error) {
	now := m.clock()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		IP:        ip,
		UA:        ua,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.cacheSet(ctx, &sess)
	return &sess, nil
}

// Revoke invalidates a single session.
func (m *Manager) Revoke(ctx context.Context, id string) error {
	if err := m.store.Revoke(ctx, id, m.clock()); err != nil {
		return err
	}
	m.cacheDel(ctx, id)
	return nil
}

// RevokeAllForUser invalidates every live session owned by the user, for
// administrative revocation.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID int64) error {
	if err := m.store.RevokeAllForUser(ctx, userID, m.clock()); err != nil {
		return err
	}
	if m.cache != nil {
		// The per-user index lets a sweep reach entries keyed by session id.
		ids, err := m.cache.SMembers(ctx, m.userKey(userID)).Result()
		if err == nil {
			for _, id := range ids {
				_ = m.cache.Del(ctx, m.cacheKey(id)).Err()
			}
			_ = m.cache.Del(ctx, m.userKey(userID)).Err()
		}
	}
	return nil
}

// Resolve returns the live session identified by id, or shared.ErrNotFound
// when the record is absent, revoked or expired.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, shared.ErrNotFound
	}
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Live(m.clock()) {
		m.cacheDel(ctx, id)
		return nil, shared.ErrNotFound
	}
	return sess, nil
}

// Exists reports whether the (userID, sessionID) pair identifies a live
// session. This is the unconditional first gate of every authorization
// decision; any storage failure surfaces as (false, err).
func (m *Manager) Exists(ctx context.Context, userID int64, sessionID string) (bool, error) {
	if sessionID == "" || userID == 0 {
		return false, nil
	}
	now := m.clock()

	if cached, ok := m.cacheGet(ctx, sessionID); ok {
		if cached.UserID == userID && now.Before(cached.ExpiresAt) {
			return true, nil
		}
		// Owner mismatch or stale entry; re-read the store.
	}

	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if sess.UserID != userID || !sess.Live(now) {
		m.cacheDel(ctx, sessionID)
		return false, nil
	}
	m.cacheSet(ctx, sess)
	return true, nil
}

func (m *Manager) cacheKey(id string) string {
	return "session:" + id
}

func (m *Manager) userKey(userID int64) string {
	return "session:user:" + strconv.FormatInt(userID, 10)
}

func (m *Manager) cacheSet(ctx context.Context, sess *Session) {
	if m.cache == nil {
		return
	}
	remaining := time.Until(sess.ExpiresAt)
	if remaining <= 0 {
		return
	}
	data, err := json.Marshal(cachedSession{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return
	}
	_ = m.cache.Set(ctx, m.cacheKey(sess.ID), data, remaining).Err()
	_ = m.cache.SAdd(ctx, m.userKey(sess.UserID), sess.ID).Err()
	_ = m.cache.Expire(ctx, m.userKey(sess.UserID), remaining).Err()
}

func (m *Manager) cacheGet(ctx context.Context, id string) (*cachedSession, bool) {
	if m.cache == nil {
		return nil, false
	}
	data, err := m.cache.Get(ctx, m.cacheKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

func (m *Manager) cacheDel(ctx context.Context, id string) {
	if m.cache == nil {
		return
	}
	_ = m.cache.Del(ctx, m.cacheKey(id)).Err()
}
