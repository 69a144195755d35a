package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the session engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRefreshRevoked is returned by RedeemRefresh when the token id is blacklisted.
var ErrRefreshRevoked = errors.New("refresh token revoked")

// ErrRefreshNotFound is returned by RedeemRefresh when no live refresh entry
// exists for the token id.
var ErrRefreshNotFound = errors.New("refresh token not found")

const (
	redeemStatusNotFound int64 = 0
	redeemStatusRevoked  int64 = 1
	redeemStatusRedeemed int64 = 2
)

// Redemption is atomic: the blacklist check, the liveness read, the delete,
// and the blacklist insert happen in one script so two concurrent redemptions
// of the same token cannot both succeed.
const redeemRefreshScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  return {1}
end

local subject = redis.call("GET", KEYS[1])
if not subject then
  return {0}
end

redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], "1", "PX", ARGV[1])

return {2, subject}
`

var redeemRefreshLua = redis.NewScript(redeemRefreshScript)

/*
====================================
KEY NAMESPACE
====================================
*/

// SessionKey returns the key holding the subject id for a live access token.
func SessionKey(tokenID string) string {
	return "session:" + tokenID
}

// RefreshKey returns the key holding the subject id for an unredeemed refresh token.
func RefreshKey(tokenID string) string {
	return "refresh:" + tokenID
}

// UserSessionsKey returns the key of the set indexing a subject's live session ids.
func UserSessionsKey(subject string) string {
	return "user:" + subject + ":sessions"
}

// BlacklistKey returns the key marking a token id as revoked.
func BlacklistKey(tokenID string) string {
	return "blacklist:" + tokenID
}

// PermissionsKey returns the key caching a subject's resolved permission codes.
func PermissionsKey(subject string) string {
	return "user:" + subject + ":perms"
}

// Store is the Redis-backed store for sessions, refresh entries, the
// revocation blacklist, the per-subject session index, and the permission
// cache.
type Store struct {
	redis redis.UniversalClient
}

// NewStore creates a [Store] backed by the given Redis client.
func NewStore(redis redis.UniversalClient) *Store {
	return &Store{redis: redis}
}

/*
====================================
SESSION ENTRIES
====================================
*/

// PutSession records a live access token, mapping its token id to the subject
// for the token's lifetime.
//
//	Performance: 1 Redis SET.
func (s *Store) PutSession(ctx context.Context, tokenID, subject string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, SessionKey(tokenID), subject, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetSession returns the subject for a live access token. The second result
// is false when no entry exists; absence is not an error.
//
//	Performance: 1 Redis GET.
func (s *Store) GetSession(ctx context.Context, tokenID string) (string, bool, error) {
	subject, err := s.redis.Get(ctx, SessionKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return subject, true, nil
}

// DeleteSession removes the session entry for a token id.
func (s *Store) DeleteSession(ctx context.Context, tokenID string) error {
	if err := s.redis.Del(ctx, SessionKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

/*
====================================
REFRESH ENTRIES
====================================
*/

// PutRefresh records an unredeemed refresh token, mapping its token id to the
// subject for the token's lifetime.
func (s *Store) PutRefresh(ctx context.Context, tokenID, subject string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, RefreshKey(tokenID), subject, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetRefresh returns the subject for an unredeemed refresh token. The second
// result is false when no entry exists.
func (s *Store) GetRefresh(ctx context.Context, tokenID string) (string, bool, error) {
	subject, err := s.redis.Get(ctx, RefreshKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return subject, true, nil
}

// DeleteRefresh removes the refresh entry for a token id.
func (s *Store) DeleteRefresh(ctx context.Context, tokenID string) error {
	if err := s.redis.Del(ctx, RefreshKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RedeemRefresh atomically consumes a refresh token: it checks the blacklist,
// reads and deletes the live refresh entry, and blacklists the token id, all
// in one Lua script. The returned subject is the one recorded at issuance.
//
// Outcomes map to sentinels: [ErrRefreshRevoked] when the id was already
// blacklisted, [ErrRefreshNotFound] when no live entry exists.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) RedeemRefresh(ctx context.Context, tokenID string, blacklistTTL time.Duration) (string, error) {
	if blacklistTTL < time.Millisecond {
		blacklistTTL = time.Millisecond
	}

	result, err := redeemRefreshLua.Run(
		ctx,
		s.redis,
		[]string{RefreshKey(tokenID), BlacklistKey(tokenID)},
		blacklistTTL.Milliseconds(),
	).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", fmt.Errorf("%w: invalid redeem script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return "", fmt.Errorf("%w: invalid redeem script status", ErrRedisUnavailable)
	}

	switch code {
	case redeemStatusNotFound:
		return "", ErrRefreshNotFound
	case redeemStatusRevoked:
		return "", ErrRefreshRevoked
	case redeemStatusRedeemed:
		if len(parts) < 2 {
			return "", fmt.Errorf("%w: missing redeemed subject", ErrRedisUnavailable)
		}
		switch v := parts[1].(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		default:
			return "", fmt.Errorf("%w: invalid redeemed subject payload", ErrRedisUnavailable)
		}
	default:
		return "", fmt.Errorf("%w: unknown redeem script status", ErrRedisUnavailable)
	}
}

/*
====================================
PER-SUBJECT SESSION INDEX
====================================
*/

// AddUserSession adds a token id to the subject's session index and refreshes
// the index TTL. The TTL keeps an abandoned index from outliving its last
// possible member.
//
//	Performance: 2 Redis commands (SADD + EXPIRE, pipelined).
func (s *Store) AddUserSession(ctx context.Context, subject, tokenID string, ttl time.Duration) error {
	key := UserSessionsKey(subject)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, tokenID)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// UserSessionCount returns the number of tracked session ids for a subject.
func (s *Store) UserSessionCount(ctx context.Context, subject string) (int, error) {
	count, err := s.redis.SCard(ctx, UserSessionsKey(subject)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// RemoveRandomUserSession pops one token id from the subject's session index.
// The second result is false when the index is empty.
func (s *Store) RemoveRandomUserSession(ctx context.Context, subject string) (string, bool, error) {
	tokenID, err := s.redis.SPop(ctx, UserSessionsKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return tokenID, true, nil
}

// UserSessions returns all tracked session ids for a subject.
func (s *Store) UserSessions(ctx context.Context, subject string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, UserSessionsKey(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// RemoveUserSession removes one token id from the subject's session index.
func (s *Store) RemoveUserSession(ctx context.Context, subject, tokenID string) error {
	if err := s.redis.SRem(ctx, UserSessionsKey(subject), tokenID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteUserSessions drops the subject's whole session index.
func (s *Store) DeleteUserSessions(ctx context.Context, subject string) error {
	if err := s.redis.Del(ctx, UserSessionsKey(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

/*
====================================
REVOCATION BLACKLIST
====================================
*/

// Blacklist marks a token id as revoked for ttl. The TTL should cover the
// remaining lifetime of the token; after that the entry is useless because
// signature verification rejects the token anyway.
func (s *Store) Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.redis.Set(ctx, BlacklistKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether a token id has been revoked.
//
//	Performance: 1 Redis EXISTS.
func (s *Store) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, BlacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

/*
====================================
PERMISSION CACHE
====================================
*/

// GetPermissionCache returns the cached permission codes for a subject. The
// second result is false on cache miss.
func (s *Store) GetPermissionCache(ctx context.Context, subject string) ([]string, bool, error) {
	data, err := s.redis.Get(ctx, PermissionsKey(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		// Corrupt entry. Treat as a miss so the caller recomputes.
		return nil, false, nil
	}
	return perms, true, nil
}

// SetPermissionCache stores a subject's permission codes for ttl.
func (s *Store) SetPermissionCache(ctx context.Context, subject string, perms []string, ttl time.Duration) error {
	if perms == nil {
		perms = []string{}
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, PermissionsKey(subject), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeletePermissionCache drops a subject's cached permissions.
func (s *Store) DeletePermissionCache(ctx context.Context, subject string) error {
	if err := s.redis.Del(ctx, PermissionsKey(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
