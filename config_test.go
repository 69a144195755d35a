package goSession

import (
	"bytes"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access TTL: %v", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh TTL: %v", cfg.JWT.RefreshTTL)
	}
	if cfg.JWT.Leeway != 30*time.Second {
		t.Fatalf("unexpected leeway: %v", cfg.JWT.Leeway)
	}
	if cfg.Session.MaxSessionsPerUser != 5 {
		t.Fatalf("unexpected session cap: %d", cfg.Session.MaxSessionsPerUser)
	}
	if cfg.Cache.PermissionTTL != 5*time.Minute {
		t.Fatalf("unexpected permission cache TTL: %v", cfg.Cache.PermissionTTL)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("metrics should be enabled by default")
	}
	if cfg.Audit.Enabled {
		t.Fatal("audit should be disabled by default")
	}
}

func TestValidateAcceptsDefaultsWithSecret(t *testing.T) {
	if err := validTestConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.JWT.Secret = nil }},
		{"short secret", func(c *Config) { c.JWT.Secret = []byte("too-short") }},
		{"zero access TTL", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"negative access TTL", func(c *Config) { c.JWT.AccessTTL = -time.Minute }},
		{"zero refresh TTL", func(c *Config) { c.JWT.RefreshTTL = 0 }},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }},
		{"negative leeway", func(c *Config) { c.JWT.Leeway = -time.Second }},
		{"excessive leeway", func(c *Config) { c.JWT.Leeway = 10 * time.Minute }},
		{"zero session cap", func(c *Config) { c.Session.MaxSessionsPerUser = 0 }},
		{"negative session cap", func(c *Config) { c.Session.MaxSessionsPerUser = -1 }},
		{"zero permission TTL", func(c *Config) { c.Cache.PermissionTTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected %s to be rejected", tc.name)
			}
		})
	}
}

func TestCloneConfigCopiesSecret(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	if !bytes.Equal(cfg.JWT.Secret, clone.JWT.Secret) {
		t.Fatal("clone must carry the same secret bytes")
	}

	clone.JWT.Secret[0] ^= 0xff
	if bytes.Equal(cfg.JWT.Secret, clone.JWT.Secret) {
		t.Fatal("mutating the clone must not affect the original secret")
	}
}
