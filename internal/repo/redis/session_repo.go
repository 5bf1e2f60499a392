package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/nakuljn/ember-dating/internal/services/auth"
)

const (
	sessionPrefix      = "ember:session:"
	refreshPrefix      = "ember:refresh:"
	userSessionsPrefix = "ember:user_sessions:"
)

// SessionRepo stores sessions as hashes. Refresh tokens are kept only as
// sha256 digests; the session hash remembers the current digest.
type SessionRepo struct {
	client *goredis.Client
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) Create(ctx context.Context, session authsvc.SessionRecord, refreshToken string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(session.SID) == "" || strings.TrimSpace(refreshToken) == "" || session.UserID <= 0 {
		return authsvc.ErrInvalidInput
	}

	digest := tokenDigest(refreshToken)
	ttl := ttlFor(session.ExpiresAt)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(session.SID), sessionFields(session, digest))
	pipe.Expire(ctx, sessionKey(session.SID), ttl)
	pipe.Set(ctx, refreshKey(digest), session.SID, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
	pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create redis session: %w", err)
	}

	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}

	values, err := r.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}

	session, err := parseSessionRecord(values)
	if err != nil {
		return authsvc.SessionRecord{}, err
	}
	session.SID = sid
	return session, nil
}

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	sid, err := r.client.Get(ctx, refreshKey(tokenDigest(refreshToken))).Result()
	if errors.Is(err, goredis.Nil) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get refresh pointer: %w", err)
	}

	session, err := r.GetSession(ctx, sid)
	if errors.Is(err, authsvc.ErrSessionNotFound) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	return session, err
}

func (r *SessionRepo) RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	session, err := r.GetByRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		return err
	}
	if sid != "" && sid != session.SID {
		return authsvc.ErrRefreshNotFound
	}

	session.ExpiresAt = expiresAt
	digest := tokenDigest(newRefreshToken)
	ttl := ttlFor(expiresAt)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, refreshKey(tokenDigest(oldRefreshToken)))
	pipe.Set(ctx, refreshKey(digest), session.SID, ttl)
	pipe.HSet(ctx, sessionKey(session.SID), sessionFields(session, digest))
	pipe.Expire(ctx, sessionKey(session.SID), ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
	pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sid string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return nil
	}

	values, err := r.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return fmt.Errorf("load session for delete: %w", err)
	}
	if len(values) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sid))
	if digest := values["refresh_digest"]; digest != "" {
		pipe.Del(ctx, refreshKey(digest))
	}
	if userID, err := strconv.ParseInt(values["user_id"], 10, 64); err == nil && userID > 0 {
		pipe.SRem(ctx, userSessionsKey(userID), sid)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete redis session: %w", err)
	}

	return nil
}

func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return authsvc.ErrInvalidInput
	}

	sids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	for _, sid := range sids {
		if err := r.DeleteSession(ctx, sid); err != nil {
			return err
		}
	}

	if err := r.client.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete user sessions key: %w", err)
	}
	return nil
}

func sessionFields(session authsvc.SessionRecord, refreshDigest string) map[string]interface{} {
	return map[string]interface{}{
		"user_id":        session.UserID,
		"role":           session.Role,
		"expires_at":     session.ExpiresAt.Unix(),
		"refresh_digest": refreshDigest,
	}
}

func parseSessionRecord(values map[string]string) (authsvc.SessionRecord, error) {
	userID, err := strconv.ParseInt(values["user_id"], 10, 64)
	if err != nil || userID <= 0 {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}

	expiresUnix, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}

	return authsvc.SessionRecord{
		UserID:    userID,
		Role:      values["role"],
		ExpiresAt: time.Unix(expiresUnix, 0).UTC(),
	}, nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func ttlFor(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func sessionKey(sid string) string {
	return sessionPrefix + sid
}

func refreshKey(digest string) string {
	return refreshPrefix + digest
}

func userSessionsKey(userID int64) string {
	return userSessionsPrefix + strconv.FormatInt(userID, 10)
}
