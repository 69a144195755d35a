// Package session is the Redis-backed persistence layer for the engine. It
// owns the key namespace, the per-subject session index, the revocation
// blacklist, the permission cache, and the atomic refresh redemption script.
//
// Every entry is keyed by token id or subject id and carries a TTL matching
// the lifetime of the token it tracks, so the store is self-cleaning: nothing
// here requires a background sweeper.
//
// The package maps Redis transport failures to [ErrRedisUnavailable] and
// reports absence through boolean results, not errors. Refresh redemption is
// the one operation with richer outcomes; see [Store.RedeemRefresh].
package session
