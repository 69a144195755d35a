package goSession

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Engine defines a public type used by goSession APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	sessionStore *session.Store
	credentials  CredentialStore
	permissions  PermissionSource
	verifier     PasswordVerifier
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping returns a point-in-time store availability check and latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	return e.sessionStore.Ping(ctx)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject, tokenID string,
	cause error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		SubjectID: subject,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

// Login verifies credentials and, on success, issues an access/refresh token
// pair, records both in the store, and enforces the per-user session cap by
// evicting the oldest tracked sessions.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || e.credentials == nil || e.verifier == nil {
		return nil, ErrEngineNotReady
	}
	if username == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "empty_input",
			}
		})
		return nil, ErrInvalidCredentials
	}

	user, err := e.credentials.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Unknown username collapses to invalid credentials so login failures
		// never reveal which accounts exist.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "user_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.verifier.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}
	password = ""

	if user.Disabled {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, false, user.ID, "", ErrAccountDisabled, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "account_disabled",
			}
		})
		return nil, ErrAccountDisabled
	}

	result, err := e.issuePair(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, false, user.ID, "", err, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "issue_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLoginSuccess, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{
			"identifier": username,
		}
	})

	return result, nil
}

// Refresh redeems a refresh token and issues a fresh token pair. Redemption
// is single-use: the presented token id is consumed and blacklisted
// atomically, so a second redemption of the same token fails with
// [ErrTokenRevoked] regardless of interleaving.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Verify(refreshToken)
	if err != nil {
		mapped := mapTokenError(err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefreshFailure, false, "", "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "verify_failed",
			}
		})
		return nil, mapped
	}

	blacklistTTL := time.Until(claims.ExpiresAt.Time)
	subject, err := e.sessionStore.RedeemRefresh(ctx, claims.ID, blacklistTTL)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshRevoked):
			e.metricInc(MetricRefreshRevoked)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, AuditRefreshFailure, false, claims.Subject, claims.ID, ErrTokenRevoked, func() map[string]string {
				return map[string]string{
					"reason": "token_revoked",
				}
			})
			return nil, ErrTokenRevoked
		case errors.Is(err, session.ErrRefreshNotFound):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, AuditRefreshFailure, false, claims.Subject, claims.ID, ErrRefreshNotFound, func() map[string]string {
				return map[string]string{
					"reason": "refresh_not_found",
				}
			})
			return nil, ErrRefreshNotFound
		default:
			e.metricInc(MetricRefreshFailure)
			return nil, err
		}
	}

	if subject != claims.Subject {
		// Store entry and signed claims disagree. Nothing trustworthy to issue.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefreshFailure, false, claims.Subject, claims.ID, ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "subject_mismatch",
			}
		})
		return nil, ErrTokenInvalid
	}

	user, err := e.credentials.FindByID(ctx, subject)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	if user == nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefreshFailure, false, subject, claims.ID, ErrUserNotFound, nil)
		return nil, ErrUserNotFound
	}
	if user.Disabled {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefreshFailure, false, subject, claims.ID, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	result, err := e.issuePair(ctx, user)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefreshFailure, false, subject, claims.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefreshSuccess, true, subject, claims.ID, nil, nil)

	return result, nil
}

// Logout revokes a single access token: its id is blacklisted for the
// token's remaining lifetime and the session entry and index membership are
// removed.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.Verify(accessToken)
	if err != nil {
		return mapTokenError(err)
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if err := e.sessionStore.Blacklist(ctx, claims.ID, remaining); err != nil {
		return err
	}
	if err := e.sessionStore.DeleteSession(ctx, claims.ID); err != nil {
		return err
	}
	if err := e.sessionStore.RemoveUserSession(ctx, claims.Subject, claims.ID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, true, claims.Subject, claims.ID, nil, nil)

	return nil
}

// LogoutAll revokes every tracked session for a subject: each indexed token
// id is blacklisted and its session entry deleted, then the index itself is
// dropped.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, subject string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if subject == "" {
		return ErrUserNotFound
	}

	tokenIDs, err := e.sessionStore.UserSessions(ctx, subject)
	if err != nil {
		return err
	}

	for _, tokenID := range tokenIDs {
		// The exact remaining lifetime is unknown without the token in hand,
		// so the entry is held for the longest TTL any indexed token can have.
		if err := e.sessionStore.Blacklist(ctx, tokenID, e.config.JWT.RefreshTTL); err != nil {
			return err
		}
		if err := e.sessionStore.DeleteSession(ctx, tokenID); err != nil {
			return err
		}
	}

	if err := e.sessionStore.DeleteUserSessions(ctx, subject); err != nil {
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditLogoutAll, true, subject, "", nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.Itoa(len(tokenIDs)),
		}
	})

	return nil
}

// Authorize validates an access token and, when requiredPermission is
// non-empty, checks that the subject holds it. Validation is fail-closed:
// signature, expiry, blacklist, and session liveness must all pass, and a
// store outage denies rather than trusting the bare token.
//
// Authorize may return an error when input validation, dependency calls, or security checks fail.
// Authorize does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authorize(ctx context.Context, accessToken, requiredPermission string) (*AuthResult, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.Verify(accessToken)
	if err != nil {
		e.metricInc(MetricAuthorizeFailure)
		return nil, mapTokenError(err)
	}

	revoked, err := e.sessionStore.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricAuthorizeFailure)
		return nil, err
	}
	if revoked {
		e.metricInc(MetricAuthorizeFailure)
		e.emitAudit(ctx, AuditAuthorizeDenied, false, claims.Subject, claims.ID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	subject, ok, err := e.sessionStore.GetSession(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricAuthorizeFailure)
		return nil, err
	}
	if !ok {
		e.metricInc(MetricAuthorizeFailure)
		e.emitAudit(ctx, AuditAuthorizeDenied, false, claims.Subject, claims.ID, ErrSessionNotFound, nil)
		return nil, ErrSessionNotFound
	}
	if subject != claims.Subject {
		e.metricInc(MetricAuthorizeFailure)
		e.emitAudit(ctx, AuditAuthorizeDenied, false, claims.Subject, claims.ID, ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "subject_mismatch",
			}
		})
		return nil, ErrTokenInvalid
	}

	if requiredPermission == "" {
		e.metricInc(MetricAuthorizeSuccess)
		return &AuthResult{Subject: subject}, nil
	}

	perms, err := e.resolvePermissions(ctx, subject)
	if err != nil {
		e.metricInc(MetricAuthorizeFailure)
		return nil, err
	}
	if !containsPermission(perms, requiredPermission) {
		e.metricInc(MetricPermissionDenied)
		e.metricInc(MetricAuthorizeFailure)
		e.emitAudit(ctx, AuditAuthorizeDenied, false, subject, claims.ID, ErrPermissionDenied, func() map[string]string {
			return map[string]string{
				"required": requiredPermission,
			}
		})
		return nil, ErrPermissionDenied
	}

	e.metricInc(MetricAuthorizeSuccess)

	return &AuthResult{Subject: subject, Permissions: perms}, nil
}

// InvalidatePermissions drops a subject's cached permission codes so the next
// Authorize call recomputes them from the permission source. Callers should
// invoke it after role or grant changes.
func (e *Engine) InvalidatePermissions(ctx context.Context, subject string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	return e.sessionStore.DeletePermissionCache(ctx, subject)
}

func (e *Engine) issuePair(ctx context.Context, user *UserRecord) (*LoginResult, error) {
	access, accessClaims, err := e.jwtManager.Issue(user.ID, e.config.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := e.jwtManager.Issue(user.ID, e.config.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}

	if err := e.sessionStore.PutSession(ctx, accessClaims.ID, user.ID, e.config.JWT.AccessTTL); err != nil {
		return nil, err
	}
	if err := e.sessionStore.PutRefresh(ctx, refreshClaims.ID, user.ID, e.config.JWT.RefreshTTL); err != nil {
		return nil, err
	}
	if err := e.sessionStore.AddUserSession(ctx, user.ID, accessClaims.ID, e.config.JWT.RefreshTTL); err != nil {
		return nil, err
	}

	if err := e.enforceSessionCap(ctx, user.ID); err != nil {
		return nil, err
	}

	e.metricInc(MetricSessionCreated)

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User: UserView{
			ID:       user.ID,
			Username: user.Username,
		},
	}, nil
}

func (e *Engine) enforceSessionCap(ctx context.Context, subject string) error {
	max := e.config.Session.MaxSessionsPerUser
	if max <= 0 {
		return nil
	}

	count, err := e.sessionStore.UserSessionCount(ctx, subject)
	if err != nil {
		return err
	}

	for count > max {
		evicted, ok, err := e.sessionStore.RemoveRandomUserSession(ctx, subject)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := e.sessionStore.Blacklist(ctx, evicted, e.config.JWT.RefreshTTL); err != nil {
			return err
		}
		if err := e.sessionStore.DeleteSession(ctx, evicted); err != nil {
			return err
		}

		e.metricInc(MetricSessionEvicted)
		e.emitAudit(ctx, AuditSessionEvicted, true, subject, evicted, nil, nil)
		count--
	}

	return nil
}

func (e *Engine) resolvePermissions(ctx context.Context, subject string) ([]string, error) {
	perms, hit, err := e.sessionStore.GetPermissionCache(ctx, subject)
	if err == nil && hit {
		e.metricInc(MetricPermissionCacheHit)
		return perms, nil
	}
	// Cache unavailability degrades to a source lookup instead of denying;
	// the cache holds derived state only.
	e.metricInc(MetricPermissionCacheMiss)

	if e.permissions == nil {
		return []string{}, nil
	}

	perms, srcErr := e.permissions.PermissionsFor(ctx, subject)
	if srcErr != nil {
		return nil, srcErr
	}
	if perms == nil {
		perms = []string{}
	}

	if err == nil {
		// Best effort. A failed cache write must not fail the request.
		_ = e.sessionStore.SetPermissionCache(ctx, subject, perms, e.config.Cache.PermissionTTL)
	}

	return perms, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}

func containsPermission(perms []string, required string) bool {
	for _, p := range perms {
		if p == required {
			return true
		}
	}
	return false
}
