// Package postgres implements goSession's CredentialStore and
// PermissionSource on top of a PostgreSQL database.
//
// Expected schema:
//
//	users(id BIGINT PRIMARY KEY, username TEXT UNIQUE, password_hash TEXT, disabled BOOLEAN)
//	permissions(id BIGINT PRIMARY KEY, code TEXT UNIQUE)
//	roles(id BIGINT PRIMARY KEY, name TEXT UNIQUE)
//	role_permissions(role_id BIGINT, permission_id BIGINT)
//	user_roles(user_id BIGINT, role_id BIGINT)
//
// The provider is read-only; account management is out of scope for the
// session engine.
package postgres
