package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues opaque bearer tokens backed by Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// Session is the server side state attached to a bearer token.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"-"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{client: client, ttl: ttl}
}

// Create starts a session for userID and returns its token.
func (sm *SessionManager) Create(ctx context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, errors.New("session: user id required")
	}
	now := time.Now().UTC()
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	pipe := sm.client.TxPipeline()
	pipe.Set(ctx, sm.redisKey(sess.Token), data, sm.ttl)
	pipe.SAdd(ctx, sm.userKey(userID), sess.Token)
	pipe.Expire(ctx, sm.userKey(userID), sm.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Load resolves a token and slides its expiry forward.
func (sm *SessionManager) Load(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthenticated
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrUnauthenticated
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, err
	}
	sess.Token = token
	sess.ExpiresAt = time.Now().UTC().Add(sm.ttl)
	// the user index must outlive every token it lists
	pipe := sm.client.TxPipeline()
	pipe.Expire(ctx, sm.redisKey(token), sm.ttl)
	if sess.UserID != "" {
		pipe.Expire(ctx, sm.userKey(sess.UserID), sm.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Destroy revokes a single token.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	payload, err := sm.client.GetDel(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err == nil && sess.UserID != "" {
		_ = sm.client.SRem(ctx, sm.userKey(sess.UserID), token).Err()
	}
	return nil
}

// DestroyUser revokes every token issued to userID.
func (sm *SessionManager) DestroyUser(ctx context.Context, userID string) error {
	tokens, err := sm.client.SMembers(ctx, sm.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sm.redisKey(token))
	}
	keys = append(keys, sm.userKey(userID))
	return sm.client.Del(ctx, keys...).Err()
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

func (sm *SessionManager) redisKey(token string) string {
	return "session:" + token
}

func (sm *SessionManager) userKey(userID string) string {
	return "session:user:" + userID
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
