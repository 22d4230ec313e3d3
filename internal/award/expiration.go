package award

import (
	"strconv"
	"strings"
	"time"
)

// lifetimeYear marks the far-future sentinel CRCON uses for permanent VIPs.
const lifetimeYear = 3000

// IsLifetime reports whether a raw expiration string denotes a permanent
// privilege. Lifetime VIPs are never modified by a grant.
func IsLifetime(expiration string) bool {
	exp := strings.ToLower(strings.TrimSpace(expiration))
	if exp == "" {
		return false
	}
	for _, marker := range []string{"permanent", "lifetime", "never"} {
		if strings.HasPrefix(exp, marker) {
			return true
		}
	}
	if year, _, found := strings.Cut(exp, "-"); found {
		if n, err := strconv.Atoi(year); err == nil && n >= lifetimeYear {
			return true
		}
	}
	return false
}

// ParseExpiration parses the expiration strings CRCON emits: RFC3339 with or
// without a Z suffix, or "2006-01-02 15:04:05" with optional fractional
// seconds. The zero time and false are returned when nothing parses.
func ParseExpiration(expiration string) (time.Time, bool) {
	exp := strings.TrimSpace(expiration)
	if exp == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, exp); err == nil {
			return t.UTC(), true
		}
	}

	// Space-separated form, with any fractional part dropped
	if dot := strings.IndexByte(exp, '.'); dot != -1 {
		exp = exp[:dot]
	}
	if t, err := time.Parse("2006-01-02 15:04:05", exp); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// StackExpiration computes the new expiration for a grant of the given
// duration: the duration stacks onto the current expiration when one exists
// and is still meaningful, otherwise onto now.
func StackExpiration(current string, hours int, now time.Time) time.Time {
	base := now.UTC()
	if t, ok := ParseExpiration(current); ok && t.After(base) {
		base = t
	}
	return base.Add(time.Duration(hours) * time.Hour)
}
