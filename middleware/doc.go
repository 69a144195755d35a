// Package middleware adapts goSession.Engine authorization to net/http.
//
// [Guard] reads the Authorization header, calls Engine.Authorize, and injects
// the verified result into the request context for handlers to read via
// [AuthResultFromContext] or [SubjectFromContext].
//
// # Status mapping
//
// A missing permission maps to 403. Every other denial, whether a bad
// signature, an expired token, a revoked id, or a dead session, maps to an
// identical 401 so responses never reveal why a token stopped working.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Authorize.
package middleware
