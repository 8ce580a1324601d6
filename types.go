package jarkeep

import "time"

// Cookie is one cookie record as synchronized between the live jar and the
// vault. Identity is (Name, Domain, Path); a later write with the same
// identity replaces the earlier record in the jar.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string

	// Expires is nil for session-only cookies.
	Expires *time.Time

	// SessionOnly marks a cookie that lives only as long as the surface
	// session. It is always true when Expires is nil.
	SessionOnly bool
}

func (c Cookie) identityKey() string {
	return c.Name + "\x00" + c.Domain + "\x00" + c.Path
}

func (c Cookie) expired(now time.Time) bool {
	return c.Expires != nil && c.Expires.Before(now)
}

func dedupeCookies(cookies []Cookie) []Cookie {
	if len(cookies) == 0 {
		return nil
	}

	merged := make(map[string]struct{}, len(cookies))
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		key := c.identityKey()
		if _, ok := merged[key]; ok {
			continue
		}
		merged[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
