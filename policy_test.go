package jarkeep

import (
	"testing"
	"time"
)

func TestMatchesDomain(t *testing.T) {
	cases := []struct {
		cookieDomain  string
		requestDomain string
		want          bool
	}{
		{".youtube.com", "music.youtube.com", true},
		{".youtube.com", "youtube.com", true},
		{"youtube.com", "music.youtube.com", true},
		{"youtube.com", "youtube.com", true},
		{"music.youtube.com", "music.youtube.com", true},
		{"example.com", "music.youtube.com", false},
		{".example.com", "music.youtube.com", false},
		{"music.youtube.com", "youtube.com", false},
		{"YOUTUBE.com", "youtube.COM", true},
		{"", "youtube.com", false},
		{"youtube.com", "", false},
		// "notyoutube.com" is not a subdomain of "youtube.com".
		{"youtube.com", "notyoutube.com", false},
	}
	for _, c := range cases {
		if got := MatchesDomain(c.cookieDomain, c.requestDomain); got != c.want {
			t.Errorf("MatchesDomain(%q, %q) = %v, want %v", c.cookieDomain, c.requestDomain, got, c.want)
		}
	}
}

func TestIsValidAuthCookie(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if IsValidAuthCookie(Cookie{Name: "PREF", Domain: ".youtube.com"}, now) {
		t.Fatalf("non-allowlisted name accepted")
	}
	if IsValidAuthCookie(Cookie{Name: CookieSAPISID, Expires: &past}, now) {
		t.Fatalf("expired cookie accepted")
	}
	if !IsValidAuthCookie(Cookie{Name: CookieSAPISID, Expires: &future}, now) {
		t.Fatalf("unexpired cookie rejected")
	}
	// Session-only cookies have no expiry and are always eligible.
	if !IsValidAuthCookie(Cookie{Name: CookieSID, SessionOnly: true}, now) {
		t.Fatalf("session-only cookie rejected")
	}
}

func TestSelectAuthSecret(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	secret, ok := SelectAuthSecret([]Cookie{
		{Name: CookieSAPISID, Value: "fallback"},
		{Name: CookieSecure3PAPISID, Value: "preferred"},
	}, now)
	if !ok || secret != "preferred" {
		t.Fatalf("got (%q, %v), want __Secure-3PAPISID preferred", secret, ok)
	}

	secret, ok = SelectAuthSecret([]Cookie{
		{Name: CookieSAPISID, Value: "fallback"},
		{Name: CookieSecure3PAPISID, Value: "stale", Expires: &past},
	}, now)
	if !ok || secret != "fallback" {
		t.Fatalf("got (%q, %v), want SAPISID fallback when preferred is expired", secret, ok)
	}

	if _, ok := SelectAuthSecret([]Cookie{{Name: CookieSID, Value: "x"}}, now); ok {
		t.Fatalf("secret reported present without SAPISID or __Secure-3PAPISID")
	}

	if _, ok := SelectAuthSecret(nil, now); ok {
		t.Fatalf("secret reported present for empty records")
	}
}
