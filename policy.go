package jarkeep

import (
	"strings"
	"time"
)

// Cookie names recognized as part of the authenticated session.
const (
	CookieSAPISID        = "SAPISID"
	CookieSecure3PAPISID = "__Secure-3PAPISID"
	CookieSecure1PAPISID = "__Secure-1PAPISID"
	CookieSID            = "SID"
	CookieHSID           = "HSID"
	CookieSSID           = "SSID"
	CookieAPISID         = "APISID"
)

var authCookieNames = map[string]struct{}{
	CookieSAPISID:        {},
	CookieSecure3PAPISID: {},
	CookieSecure1PAPISID: {},
	CookieSID:            {},
	CookieHSID:           {},
	CookieSSID:           {},
	CookieAPISID:         {},
}

// IsAuthCookieName reports whether name belongs to the auth cookie allowlist.
func IsAuthCookieName(name string) bool {
	_, ok := authCookieNames[name]
	return ok
}

// IsValidAuthCookie reports whether c is an allowlisted auth cookie that has
// not expired as of now. An expired cookie is never treated as present, even
// if it is physically still in the jar.
func IsValidAuthCookie(c Cookie, now time.Time) bool {
	if !IsAuthCookieName(c.Name) {
		return false
	}
	return c.Expires == nil || !c.Expires.Before(now)
}

// MatchesDomain reports whether a cookie set for cookieDomain is visible to a
// request targeting requestDomain. Three cases match, in order: exact equality
// (case-insensitive); a dotted cookie domain covering its base host and any
// subdomain of it; and a request host that is a strict subdomain of an
// undotted cookie domain.
func MatchesDomain(cookieDomain, requestDomain string) bool {
	cookieDomain = strings.ToLower(strings.TrimSpace(cookieDomain))
	requestDomain = strings.ToLower(strings.TrimSpace(requestDomain))
	if cookieDomain == "" || requestDomain == "" {
		return false
	}

	if cookieDomain == requestDomain {
		return true
	}
	if base, ok := strings.CutPrefix(cookieDomain, "."); ok {
		return requestDomain == base || strings.HasSuffix(requestDomain, "."+base)
	}
	return strings.HasSuffix(requestDomain, "."+cookieDomain)
}

// SelectAuthSecret picks the signing secret from records: __Secure-3PAPISID
// when present and unexpired, otherwise SAPISID. The second return is false
// when neither is usable.
func SelectAuthSecret(records []Cookie, now time.Time) (string, bool) {
	var sapisid string
	var haveSAPISID bool
	for _, c := range records {
		if !IsValidAuthCookie(c, now) {
			continue
		}
		switch c.Name {
		case CookieSecure3PAPISID:
			if c.Value != "" {
				return c.Value, true
			}
		case CookieSAPISID:
			if !haveSAPISID && c.Value != "" {
				sapisid = c.Value
				haveSAPISID = true
			}
		}
	}
	return sapisid, haveSAPISID
}
