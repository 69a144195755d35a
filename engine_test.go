package goSession

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stubDirectory is an in-memory CredentialStore and PermissionSource.
type stubDirectory struct {
	mu         sync.RWMutex
	byID       map[string]UserRecord
	byUsername map[string]string
	perms      map[string][]string
	permCalls  int
	permErr    error
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		byID:       make(map[string]UserRecord),
		byUsername: make(map[string]string),
		perms:      make(map[string][]string),
	}
}

func (d *stubDirectory) PutUser(u UserRecord, perms []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[u.ID] = u
	d.byUsername[u.Username] = u.ID
	d.perms[u.ID] = perms
}

func (d *stubDirectory) SetDisabled(id string, disabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.byID[id]
	u.Disabled = disabled
	d.byID[id] = u
}

func (d *stubDirectory) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byUsername[username]
	if !ok {
		return nil, nil
	}
	u := d.byID[id]
	return &u, nil
}

func (d *stubDirectory) FindByID(_ context.Context, id string) (*UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (d *stubDirectory) PermissionsFor(_ context.Context, subject string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permCalls++
	if d.permErr != nil {
		return nil, d.permErr
	}
	return d.perms[subject], nil
}

func (d *stubDirectory) PermCalls() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.permCalls
}

// plainVerifier compares plaintext against the stored value directly, which
// keeps engine tests fast. Hashing itself is covered in the password package.
type plainVerifier struct{}

func (plainVerifier) Verify(password, encodedHash string) (bool, error) {
	return password == encodedHash, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "engine-test"
	return cfg
}

func newTestEngineWithConfig(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis, *stubDirectory, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	dir := newStubDirectory()
	dir.PutUser(UserRecord{
		ID:           "u-1",
		Username:     "alice@example.com",
		PasswordHash: "correct-horse",
	}, []string{"user.read", "admin.panel"})
	dir.PutUser(UserRecord{
		ID:           "u-2",
		Username:     "bob@example.com",
		PasswordHash: "hunter2-hunter2",
	}, []string{"user.read"})

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(dir).
		WithPermissionSource(dir).
		WithPasswordVerifier(plainVerifier{}).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}

	return engine, mr, dir, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func newTestEngineWithAudit(t *testing.T, cfg Config, sink AuditSink) (*Engine, *miniredis.Miniredis, *stubDirectory, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	dir := newStubDirectory()
	dir.PutUser(UserRecord{
		ID:           "u-1",
		Username:     "alice@example.com",
		PasswordHash: "correct-horse",
	}, []string{"user.read", "admin.panel"})

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(dir).
		WithPermissionSource(dir).
		WithPasswordVerifier(plainVerifier{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}

	return engine, mr, dir, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func newTestEngine(t *testing.T) (*Engine, *miniredis.Miniredis, *stubDirectory, func()) {
	t.Helper()
	return newTestEngineWithConfig(t, testConfig())
}

func mustLogin(t *testing.T, e *Engine, username, password string) *LoginResult {
	t.Helper()
	result, err := e.Login(context.Background(), username, password)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return result
}

func counterValue(t *testing.T, e *Engine, id MetricID) uint64 {
	t.Helper()
	return e.MetricsSnapshot().Counters[id]
}
