package jarkeep

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Addressing selects which account a signed request acts on behalf of. Two
// independent schemes share it:
//
//   - an integer auth-user index, sent as a request header, selecting which
//     signed-in browser session's cookies apply (0 is the primary identity);
//   - an opaque brand-identity token, sent in the request body, selecting an
//     identity within that session.
//
// When a brand token is set it governs the call's targeting, but the index
// header is still sent alongside it.
type Addressing struct {
	mu         sync.Mutex
	authUser   int
	brandToken string
}

// AuthUser returns the current auth-user index, 0 by default.
func (a *Addressing) AuthUser() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authUser
}

// SetAuthUser selects the auth-user index. Negative values reset to 0.
func (a *Addressing) SetAuthUser(i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 {
		i = 0
	}
	a.authUser = i
}

// BrandToken returns the active brand-identity token, if one is set.
func (a *Addressing) BrandToken() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.brandToken, a.brandToken != ""
}

// SetBrandToken activates brand addressing for every subsequent signed
// request until ClearBrandToken.
func (a *Addressing) SetBrandToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.brandToken = token
}

// ClearBrandToken deactivates brand addressing.
func (a *Addressing) ClearBrandToken() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.brandToken = ""
}

// Account is one signed-in identity discovered by index probing.
type Account struct {
	Index       int
	DisplayName string
}

// BrandAccount is one brand identity available within the current session.
type BrandAccount struct {
	DisplayName string
	Token       string
}

// Directory discovers the accounts reachable through the current session.
type Directory struct {
	client        *http.Client
	session       SessionSource
	origin        string
	introspectURL string
	listURL       string
	maxProbe      int
	now           func() time.Time
	log           *log.Logger
}

// NewDirectory returns a directory probing introspectURL for index discovery
// and listURL for brand identities. The origin must match the one used for
// request signing.
func NewDirectory(client *http.Client, session SessionSource, origin, introspectURL, listURL string, logger *log.Logger) *Directory {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Directory{
		client:        client,
		session:       session,
		origin:        origin,
		introspectURL: introspectURL,
		listURL:       listURL,
		maxProbe:      10,
		now:           time.Now,
		log:           logger,
	}
}

// DiscoverAccounts probes auth-user indexes 0, 1, 2, ... and returns the
// identities that answered with a display name. Accounts are densely packed
// from 0, so the probe stops at the first index that fails or comes back
// nameless.
func (d *Directory) DiscoverAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	for i := 0; i < d.maxProbe; i++ {
		name, err := d.introspect(ctx, i)
		if err != nil {
			if len(out) == 0 {
				return nil, err
			}
			break
		}
		if name == "" {
			break
		}
		out = append(out, Account{Index: i, DisplayName: name})
	}
	d.log.WithField("accounts", len(out)).Debug("directory: index probe complete")
	return out, nil
}

func (d *Directory) introspect(ctx context.Context, authUser int) (string, error) {
	body, err := d.post(ctx, d.introspectURL, authUser)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "accountName").String(), nil
}

// ListBrandAccounts enumerates the brand identities available within the
// current session with a single list-accounts call.
func (d *Directory) ListBrandAccounts(ctx context.Context) ([]BrandAccount, error) {
	body, err := d.post(ctx, d.listURL, 0)
	if err != nil {
		return nil, err
	}

	var out []BrandAccount
	for _, item := range gjson.GetBytes(body, "accounts").Array() {
		token := item.Get("onBehalfOfUser").String()
		if token == "" {
			continue
		}
		out = append(out, BrandAccount{
			DisplayName: item.Get("accountName").String(),
			Token:       token,
		})
	}
	return out, nil
}

func (d *Directory) post(ctx context.Context, rawURL string, authUser int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	domain := req.URL.Hostname()
	cookieHeader, err := d.session.CookieHeader(ctx, domain)
	if err != nil {
		return nil, err
	}
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

	req.Header.Set("Cookie", cookieHeader)
	req.Header.Set("Authorization", auth)
	req.Header.Set(HeaderAuthUser, strconv.Itoa(authUser))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jarkeep: directory call %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
