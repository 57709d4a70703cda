package authclient

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/net/publicsuffix"
)

const tokenCookie = "auth_token"

// TokenJar keeps the session token as a cookie scoped to the API origin.
// The cookie is HttpOnly and SameSite=Strict, and Secure whenever the origin
// is served over https.
type TokenJar struct {
	jar    *cookiejar.Jar
	origin *url.URL
	clock  clockwork.Clock
}

// NewTokenJar creates an empty jar for origin, e.g. "https://api.gigmarket.io".
func NewTokenJar(origin string, clock clockwork.Clock) (*TokenJar, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("authclient: invalid origin %q", origin)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenJar{jar: jar, origin: &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, clock: clock}, nil
}

// Store saves token until expiresAt. An already expired token clears the jar.
func (j *TokenJar) Store(token string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(j.clock.Now()) / time.Second)
	if maxAge <= 0 {
		j.Clear()
		return
	}
	j.jar.SetCookies(j.origin, []*http.Cookie{j.cookie(token, maxAge)})
}

// Token returns the stored token, or "" when there is none.
func (j *TokenJar) Token() string {
	for _, c := range j.jar.Cookies(j.origin) {
		if c.Name == tokenCookie {
			return c.Value
		}
	}
	return ""
}

// Clear removes the token.
func (j *TokenJar) Clear() {
	j.jar.SetCookies(j.origin, []*http.Cookie{j.cookie("", -1)})
}

// Jar exposes the underlying cookie jar for an http.Client.
func (j *TokenJar) Jar() http.CookieJar {
	return j.jar
}

func (j *TokenJar) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   j.origin.Scheme == "https",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
