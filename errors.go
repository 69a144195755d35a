package goSession

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the session engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is an exported constant or variable used by the session engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the session engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountDisabled is an exported constant or variable used by the session engine.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrTokenInvalid is an exported constant or variable used by the session engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the session engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when a token-id is present in the blacklist.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionNotFound is returned when no live session entry exists for a token-id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshNotFound is returned when no live refresh entry exists for a token-id
	// (already redeemed, logged out, or expired out of the store).
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrPermissionDenied is an exported constant or variable used by the session engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEngineNotReady is an exported constant or variable used by the session engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
