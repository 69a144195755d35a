// Package jwt signs and verifies the access and refresh tokens used by the
// session engine. Both token kinds share one claim shape (subject, issued-at,
// expiry, token id) and one HS256 signing secret; they differ only in
// lifetime. Token ids are random UUIDs and are the handle every store entry
// is keyed by.
//
// The package performs no I/O. Liveness and revocation are the store's
// concern: a token that verifies here can still be rejected upstream.
package jwt
