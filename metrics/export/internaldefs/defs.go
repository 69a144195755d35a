package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef defines a public type used by goSession APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goSession APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session engine.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful login attempts."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed login attempts."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh operations."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: goSession.MetricRefreshRevoked, Name: "gosession_refresh_revoked_total", Help: "Refresh attempts with an already-revoked token id."},
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Created sessions."},
	{ID: goSession.MetricSessionEvicted, Name: "gosession_session_evicted_total", Help: "Sessions evicted by the per-user cap."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Single-session logout operations."},
	{ID: goSession.MetricLogoutAll, Name: "gosession_logout_all_total", Help: "Logout-all operations."},
	{ID: goSession.MetricAuthorizeSuccess, Name: "gosession_authorize_success_total", Help: "Successful authorization checks."},
	{ID: goSession.MetricAuthorizeFailure, Name: "gosession_authorize_failure_total", Help: "Failed authorization checks."},
	{ID: goSession.MetricPermissionDenied, Name: "gosession_permission_denied_total", Help: "Authorization checks denied for a missing permission."},
	{ID: goSession.MetricPermissionCacheHit, Name: "gosession_permission_cache_hit_total", Help: "Permission lookups served from cache."},
	{ID: goSession.MetricPermissionCacheMiss, Name: "gosession_permission_cache_miss_total", Help: "Permission lookups recomputed from source."},
}

// HistogramDefs is an exported constant or variable used by the session engine.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricAuthorizeLatency, Name: "gosession_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
