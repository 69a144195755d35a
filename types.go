package goSession

import "context"

// UserRecord is the full credential record returned by [CredentialStore].
// It carries the password hash and disabled flag; the hash never leaves the
// engine.
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
	Disabled     bool
}

// UserView is the public projection of a user returned alongside issued
// tokens. It never includes the password hash.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserView
}

// AuthResult is returned by [Engine.Authorize]. It contains the verified
// subject id and, when a required permission was evaluated, the resolved
// permission codes.
type AuthResult struct {
	Subject     string
	Permissions []string
}

// CredentialStore is the interface callers must implement to integrate
// goSession with their user database. Lookups return (nil, nil) when no
// record exists; absence is not an error.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
}

// PermissionSource resolves the authoritative permission codes for a subject.
// The engine caches results in Redis for a short TTL; the source is consulted
// on cache miss or cache unavailability.
type PermissionSource interface {
	PermissionsFor(ctx context.Context, subject string) ([]string, error)
}

// PasswordVerifier checks a plaintext password against a stored hash. The
// hashing algorithm is opaque to the engine; [password.Argon2] is the default
// implementation installed by [Builder.Build].
type PasswordVerifier interface {
	Verify(password, encodedHash string) (bool, error)
}
