package jarkeep

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/sjson"
)

// HeaderAuthUser carries the auth-user index on outbound requests.
const HeaderAuthUser = "X-Goog-AuthUser"

// bodyFieldOnBehalfOf is where the brand-identity token lives in an outbound
// JSON request body.
const bodyFieldOnBehalfOf = "context.user.onBehalfOfUser"

// SessionSource supplies per-request authentication material. *Synchronizer
// implements it.
type SessionSource interface {
	GetAuthSecret(ctx context.Context, domain string) (string, bool, error)
	CookieHeader(ctx context.Context, domain string) (string, error)
}

// Decorator attaches the full set of authentication material to outbound API
// requests: the Cookie header, the SAPISIDHASH Authorization header, the
// auth-user index header, and (when brand addressing is active) the
// on-behalf-of token in the JSON body.
type Decorator struct {
	session SessionSource
	addr    *Addressing
	origin  string
	now     func() time.Time
}

// NewDecorator wires a decorator to a session source. origin is the page
// origin the remote service expects inside the signature. addr may be nil
// when the host only ever acts as the primary identity.
func NewDecorator(session SessionSource, addr *Addressing, origin string) *Decorator {
	if addr == nil {
		addr = &Addressing{}
	}
	return &Decorator{session: session, addr: addr, origin: origin, now: time.Now}
}

// Decorate sets the authentication headers on req and returns the (possibly
// rewritten) JSON body. It fails with ErrNoAuthSecret when no usable secret
// exists; callers must not send the request unsigned in that case.
func (d *Decorator) Decorate(ctx context.Context, req *http.Request, body []byte) ([]byte, error) {
	domain := req.URL.Hostname()

	secret, ok, err := d.session.GetAuthSecret(ctx, domain)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoAuthSecret
	}
	auth, err := AuthorizationHeader(secret, d.origin, d.now())
	if err != nil {
		return nil, err
	}

	cookieHeader, err := d.session.CookieHeader(ctx, domain)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Cookie", cookieHeader)
	req.Header.Set("Authorization", auth)
	req.Header.Set(HeaderAuthUser, strconv.Itoa(d.addr.AuthUser()))

	if token, active := d.addr.BrandToken(); active && len(body) > 0 {
		body, err = sjson.SetBytes(body, bodyFieldOnBehalfOf, token)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}
