package cache

import "time"

// Cache is a key/payload store whose entries stop being returned once their
// expiry has passed. Implementations are safe for concurrent use.
type Cache[P any] interface {
	Get(key string) (P, bool)
	Set(key string, payload P)
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// AlignedExpiry computes the expiry for an entry written at now with the given
// max-age. The result is now+maxAge rounded down to a multiple of maxAge
// measured from the Unix epoch, so entries written in the same window expire
// together. If rounding lands at or before now, one more maxAge is added.
func AlignedExpiry(now time.Time, maxAge time.Duration) time.Time {
	if maxAge <= 0 {
		return now
	}

	n := now.Add(maxAge).UnixNano()
	n -= n % int64(maxAge)

	expires := time.Unix(0, n)
	if !expires.After(now) {
		expires = expires.Add(maxAge)
	}
	return expires
}
