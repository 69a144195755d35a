// Package goSession issues and manages authentication sessions: short-lived JWT
// access tokens, longer-lived rotating refresh tokens, Redis-backed multi-device
// session tracking, token revocation, and cached permission lookups.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config], and
// value types (LoginResult, AuthResult, MetricsSnapshot). Credential lookup,
// permission resolution, and password verification are injected through the
// [CredentialStore], [PermissionSource], and [PasswordVerifier] interfaces; the
// engine never talks to a user database directly.
//
// # What this package must NOT do
//
//   - Expose Redis clients, key layout internals, or signing keys in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Distinguish revocation from expiry in anything returned to an HTTP boundary.
//
// # Failure contract
//
// Blacklist and session-liveness checks fail closed: if the shared cache is
// unreachable, Authorize denies. Permission resolution is the only point allowed
// to degrade: it falls back to the injected [PermissionSource] when the cache is
// down.
package goSession
