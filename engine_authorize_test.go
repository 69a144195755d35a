package goSession

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goSession/session"
)

func TestAuthorizeGrantsHeldPermission(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	auth, err := engine.Authorize(ctx, login.AccessToken, "admin.panel")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if auth.Subject != "u-1" {
		t.Fatalf("expected subject u-1, got %q", auth.Subject)
	}
	if !containsPermission(auth.Permissions, "admin.panel") {
		t.Fatalf("expected admin.panel in %v", auth.Permissions)
	}

	if got := counterValue(t, engine, MetricAuthorizeSuccess); got != 1 {
		t.Fatalf("expected 1 authorize success, got %d", got)
	}
}

func TestAuthorizeDeniesMissingPermission(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	login := mustLogin(t, engine, "bob@example.com", "hunter2-hunter2")

	_, err := engine.Authorize(context.Background(), login.AccessToken, "admin.panel")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if got := counterValue(t, engine, MetricPermissionDenied); got != 1 {
		t.Fatalf("expected 1 permission denial, got %d", got)
	}
}

func TestAuthorizeEmptyPermissionSkipsLookup(t *testing.T) {
	engine, _, dir, done := newTestEngine(t)
	defer done()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	if _, err := engine.Authorize(context.Background(), login.AccessToken, ""); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if calls := dir.PermCalls(); calls != 0 {
		t.Fatalf("expected no permission source calls, got %d", calls)
	}
}

func TestAuthorizeCachesPermissions(t *testing.T) {
	engine, _, dir, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	for i := 0; i < 3; i++ {
		if _, err := engine.Authorize(ctx, login.AccessToken, "user.read"); err != nil {
			t.Fatalf("authorize #%d: %v", i, err)
		}
	}

	// First call misses and populates the cache; the rest are served from it.
	if calls := dir.PermCalls(); calls != 1 {
		t.Fatalf("expected 1 permission source call, got %d", calls)
	}
	if got := counterValue(t, engine, MetricPermissionCacheHit); got != 2 {
		t.Fatalf("expected 2 cache hits, got %d", got)
	}
	if got := counterValue(t, engine, MetricPermissionCacheMiss); got != 1 {
		t.Fatalf("expected 1 cache miss, got %d", got)
	}
}

func TestAuthorizeCacheExpiryTriggersRecompute(t *testing.T) {
	engine, mr, dir, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	if _, err := engine.Authorize(ctx, login.AccessToken, "user.read"); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	if _, err := engine.Authorize(ctx, login.AccessToken, "user.read"); err != nil {
		t.Fatalf("authorize after cache expiry: %v", err)
	}
	if calls := dir.PermCalls(); calls != 2 {
		t.Fatalf("expected 2 permission source calls, got %d", calls)
	}
}

func TestInvalidatePermissionsForcesSourceLookup(t *testing.T) {
	engine, _, dir, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	if _, err := engine.Authorize(ctx, login.AccessToken, "user.read"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := engine.InvalidatePermissions(ctx, "u-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := engine.Authorize(ctx, login.AccessToken, "user.read"); err != nil {
		t.Fatalf("authorize after invalidation: %v", err)
	}

	if calls := dir.PermCalls(); calls != 2 {
		t.Fatalf("expected 2 permission source calls, got %d", calls)
	}
}

func TestAuthorizePermissionSourceErrorDenies(t *testing.T) {
	engine, _, dir, done := newTestEngine(t)
	defer done()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	dir.mu.Lock()
	dir.permErr = errors.New("directory offline")
	dir.mu.Unlock()

	_, err := engine.Authorize(context.Background(), login.AccessToken, "user.read")
	if err == nil {
		t.Fatal("expected permission lookup failure to deny")
	}
}

func TestAuthorizeExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Leeway = 0

	engine, _, _, done := newTestEngineWithConfig(t, cfg)
	defer done()

	expired := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		Subject:   "u-1",
		IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		ID:        "expired-id",
		Issuer:    cfg.JWT.Issuer,
	})
	signed, err := expired.SignedString(cfg.JWT.Secret)
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}

	if _, err := engine.Authorize(context.Background(), signed, ""); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthorizeGarbageToken(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	_, err := engine.Authorize(context.Background(), "not.a.jwt", "")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthorizeSessionExpiryDenies(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Leeway = 2 * time.Minute

	engine, mr, _, done := newTestEngineWithConfig(t, cfg)
	defer done()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	// The session entry in the store expires even though leeway may keep the
	// signed token verifiable slightly past its exp.
	mr.FastForward(16 * time.Minute)

	_, err := engine.Authorize(context.Background(), login.AccessToken, "")
	if err == nil {
		t.Fatal("expected authorization to fail once the session entry is gone")
	}
}

func TestAuthorizeStoreUnavailableFailsClosed(t *testing.T) {
	engine, mr, _, done := newTestEngine(t)
	defer done()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	mr.Close()

	_, err := engine.Authorize(context.Background(), login.AccessToken, "")
	if !errors.Is(err, session.ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestAuthorizeLatencyHistogram(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true

	engine, _, _, done := newTestEngineWithConfig(t, cfg)
	defer done()

	login := mustLogin(t, engine, "alice@example.com", "correct-horse")

	if _, err := engine.Authorize(context.Background(), login.AccessToken, ""); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	snap := engine.MetricsSnapshot()
	buckets := snap.Histograms[MetricAuthorizeLatency]
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 1 {
		t.Fatalf("expected 1 latency observation, got %d (%v)", total, buckets)
	}
}
