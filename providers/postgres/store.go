package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"

	goSession "github.com/MrEthical07/goSession"
)

// Store defines a public type used by goSession APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the given connection string and verifies
// the connection before returning.
//
// Open may return an error when input validation, dependency calls, or security checks fail.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. The caller keeps ownership of
// the handle's lifecycle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByUsername describes the findbyusername operation and its observable behavior.
//
// FindByUsername may return an error when input validation, dependency calls, or security checks fail.
// FindByUsername does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByUsername(ctx context.Context, username string) (*goSession.UserRecord, error) {
	const query = `
		SELECT id, username, password_hash, disabled
		FROM users
		WHERE username = $1`

	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// FindByID describes the findbyid operation and its observable behavior.
//
// FindByID may return an error when input validation, dependency calls, or security checks fail.
// FindByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByID(ctx context.Context, id string) (*goSession.UserRecord, error) {
	numeric, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil
	}

	const query = `
		SELECT id, username, password_hash, disabled
		FROM users
		WHERE id = $1`

	return s.scanUser(s.db.QueryRowContext(ctx, query, numeric))
}

// PermissionsFor returns the distinct permission codes granted to a subject
// through its roles.
//
// PermissionsFor may return an error when input validation, dependency calls, or security checks fail.
// PermissionsFor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) PermissionsFor(ctx context.Context, subject string) ([]string, error) {
	numeric, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return []string{}, nil
	}

	const query = `
		SELECT DISTINCT p.code
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.code`

	rows, err := s.db.QueryContext(ctx, query, numeric)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return perms, nil
}

func (s *Store) scanUser(row *sql.Row) (*goSession.UserRecord, error) {
	var (
		id           int64
		username     string
		passwordHash string
		disabled     bool
	)

	if err := row.Scan(&id, &username, &passwordHash, &disabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &goSession.UserRecord{
		ID:           strconv.FormatInt(id, 10),
		Username:     username,
		PasswordHash: passwordHash,
		Disabled:     disabled,
	}, nil
}
