package coordkv

import "time"

// Expireat records the wall-clock instant before any I/O and the absolute
// Unix timestamp a lease taken out `now` for timeout would expire at.
// Matches spec §4.1: "records the wall-clock instant t_start before any
// I/O, returns t_expireat = t_start + timeout_seconds".
func Expireat(now time.Time, timeout time.Duration) (tStart time.Time, tExpireat int64) {
	return now, now.Add(timeout).Unix()
}

// LockStillValid reports whether a lease acquired with absolute expiry
// tExpireat remains usable: the round trip spent acquiring it, plus one
// more polling interval and the assumed clock drift, must still fit before
// the lease expires. A false return means the round trip consumed too much
// of the lease's lifetime and the acquisition must be treated as failed
// (the caller should release whatever it obtained).
func LockStillValid(now time.Time, tExpireat int64, clockDrift, pollingInterval time.Duration) bool {
	return now.Add(pollingInterval).Add(clockDrift).Unix() < tExpireat
}

// PollingInterval is timeout/5, the cadence at which a background extender
// re-runs its extend operation and the margin LockStillValid reserves.
func PollingInterval(timeout time.Duration) time.Duration {
	return timeout / 5
}
