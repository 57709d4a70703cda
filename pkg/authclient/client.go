// Package authclient is the Go SDK of the identity service. It keeps the
// session token in a cookie jar backed by the Store, caches the user and dashboard snapshots with
// TTLs, and coalesces concurrent loads of the same resource.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache keys.
const (
	KeyToken         = "auth:token"
	KeyUser          = "auth:user"
	KeyPreferredRole = "auth:preferred-role"
	keyDashboard     = "auth:dashboard:"
)

// Cache lifetimes.
const (
	UserTTL          = 10 * time.Minute
	DashboardTTL     = 5 * time.Minute
	PlaceholderTTL   = 30 * time.Second
	PreferredRoleTTL = 30 * 24 * time.Hour
)

var (
	ErrNotAuthenticated = errors.New("authclient: not authenticated")
	ErrNoWallet         = errors.New("authclient: no wallet provider")
	ErrNoAccounts       = errors.New("authclient: wallet returned no accounts")
)

// Options configure a Client. BaseURL is required.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      Store
	Wallet     WalletProvider
	Clock      clockwork.Clock
}

// Client talks to the identity service on behalf of one user.
type Client struct {
	base   *url.URL
	http   *http.Client
	cache  *Cache
	tokens *TokenJar
	wallet WalletProvider
	clock  clockwork.Clock
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("authclient: invalid base url %q", opts.BaseURL)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	tokens, err := NewTokenJar(opts.BaseURL, opts.Clock)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:   base,
		http:   opts.HTTPClient,
		cache:  NewCache(opts.Store, opts.Clock),
		tokens: tokens,
		wallet: opts.Wallet,
		clock:  opts.Clock,
	}
	c.restoreToken(context.Background())
	return c, nil
}

// Close releases the cache. The session stays stored.
func (c *Client) Close() {
	c.cache.Close()
}

// Token returns the current session token, or "".
func (c *Client) Token() string {
	return c.tokens.Token()
}

// ---- password flows ----

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	return c.authenticate(ctx, "/auth/signup", req)
}

// SignupClient creates an account with the client role.
func (c *Client) SignupClient(ctx context.Context, req ClientSignupRequest) (*User, error) {
	return c.authenticate(ctx, "/auth/client/signup", req)
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

// ---- wallet flows ----

// ConnectWallet signs a fresh challenge with the first wallet account and
// logs in with it. An unknown wallet yields an *APIError with
// NeedsRegistration set; follow up with WalletSignup.
func (c *Client) ConnectWallet(ctx context.Context) (*User, error) {
	proof, err := c.signChallenge(ctx)
	if err != nil {
		return nil, err
	}
	return c.authenticate(ctx, "/auth/wallet", proof)
}

// WalletSignup creates an account bound to the first wallet account.
func (c *Client) WalletSignup(ctx context.Context, req WalletSignupRequest) (*User, error) {
	proof, err := c.signChallenge(ctx)
	if err != nil {
		return nil, err
	}
	body := struct {
		walletProof
		WalletSignupRequest
	}{proof, req}
	return c.authenticate(ctx, "/auth/wallet/signup", body)
}

// LinkWallet binds the first wallet account to the signed-in user.
func (c *Client) LinkWallet(ctx context.Context) (*User, error) {
	proof, err := c.signChallenge(ctx)
	if err != nil {
		return nil, err
	}
	return c.mutateUser(ctx, http.MethodPost, "/auth/users/wallet", proof)
}

func (c *Client) UnlinkWallet(ctx context.Context) (*User, error) {
	return c.mutateUser(ctx, http.MethodDelete, "/auth/users/wallet", nil)
}

// ---- session ----

// CurrentUser returns the cached user or loads it from /auth/me. Without a
// token the cached user is dropped. Any failure of the load ends the local
// session.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c.tokens.Token() == "" && c.restoreToken(ctx) == "" {
		_ = c.cache.Invalidate(ctx, KeyUser)
		return nil, ErrNotAuthenticated
	}
	var cached User
	if ok, _ := c.cache.Get(ctx, KeyUser, &cached); ok {
		return &cached, nil
	}

	user, err := Deduplicate(ctx, c.cache, KeyUser, func(ctx context.Context) (*User, error) {
		var env userEnvelope
		if err := c.do(ctx, http.MethodGet, "/auth/me", nil, true, &env); err != nil {
			_ = c.Logout(ctx)
			return nil, err
		}
		if err := c.persistUser(ctx, &env.User); err != nil {
			return nil, err
		}
		return &env.User, nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	return c.mutateUser(ctx, http.MethodPatch, "/auth/users/profile", update)
}

// Logout drops the token and every cached entry.
func (c *Client) Logout(ctx context.Context) error {
	c.tokens.Clear()
	return c.cache.Invalidate(ctx)
}

// CurrentRole is the role of the cached user, else the stored preference,
// else freelancer.
func (c *Client) CurrentRole(ctx context.Context) string {
	var user User
	if ok, _ := c.cache.Get(ctx, KeyUser, &user); ok && validRole(user.Role) {
		return user.Role
	}
	var role string
	if ok, _ := c.cache.Get(ctx, KeyPreferredRole, &role); ok && validRole(role) {
		return role
	}
	return RoleFreelancer
}

func (c *Client) SetPreferredRole(ctx context.Context, role string) error {
	if !validRole(role) {
		return fmt.Errorf("authclient: unknown role %q", role)
	}
	return c.cache.Set(ctx, KeyPreferredRole, role, PreferredRoleTTL)
}

// ---- dashboard ----

// FetchDashboard returns the dashboard of the current role. A failed fetch
// is not reported: a short-lived placeholder is stored and returned instead.
func (c *Client) FetchDashboard(ctx context.Context) (*Dashboard, error) {
	if c.tokens.Token() == "" {
		return nil, ErrNotAuthenticated
	}
	role := c.CurrentRole(ctx)
	key := keyDashboard + role

	var cached Dashboard
	if ok, _ := c.cache.Get(ctx, key, &cached); ok {
		return &cached, nil
	}

	return Deduplicate(ctx, c.cache, key, func(ctx context.Context) (*Dashboard, error) {
		var d Dashboard
		if err := c.do(ctx, http.MethodGet, "/dashboard/"+role, nil, true, &d); err != nil {
			placeholder := &Dashboard{Role: role, Stats: map[string]int64{}, GeneratedAt: c.clock.Now(), Placeholder: true}
			_ = c.cache.Set(ctx, key, placeholder, PlaceholderTTL)
			return placeholder, nil
		}
		if err := c.cache.Set(ctx, key, &d, DashboardTTL); err != nil {
			return nil, err
		}
		return &d, nil
	})
}

// ---- internals ----

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	var res authResponse
	if err := c.do(ctx, http.MethodPost, path, body, false, &res); err != nil {
		return nil, err
	}
	if err := c.storeToken(ctx, res.Token, res.ExpiresAt); err != nil {
		return nil, err
	}
	if err := c.cache.Invalidate(ctx, c.dashboardKeys()...); err != nil {
		return nil, err
	}
	if err := c.persistUser(ctx, &res.User); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) mutateUser(ctx context.Context, method, path string, body any) (*User, error) {
	if c.tokens.Token() == "" {
		return nil, ErrNotAuthenticated
	}
	var env userEnvelope
	if err := c.do(ctx, method, path, body, true, &env); err != nil {
		return nil, err
	}
	if err := c.cache.Invalidate(ctx, c.dashboardKeys()...); err != nil {
		return nil, err
	}
	if err := c.persistUser(ctx, &env.User); err != nil {
		return nil, err
	}
	return &env.User, nil
}

type storedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// storeToken puts token in the jar and in the Store until expiresAt.
func (c *Client) storeToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(c.clock.Now())
	if token == "" || ttl <= 0 {
		c.tokens.Clear()
		return c.cache.Invalidate(ctx, KeyToken)
	}
	c.tokens.Store(token, expiresAt)
	return c.cache.Set(ctx, KeyToken, storedToken{Token: token, ExpiresAt: expiresAt}, ttl)
}

// restoreToken loads a token left in the Store by an earlier Client and
// returns it, or "" when there is none.
func (c *Client) restoreToken(ctx context.Context) string {
	var st storedToken
	if ok, _ := c.cache.Get(ctx, KeyToken, &st); !ok || st.Token == "" {
		return ""
	}
	c.tokens.Store(st.Token, st.ExpiresAt)
	return c.tokens.Token()
}

// persistUser caches user and re-derives the preferred role from it.
func (c *Client) persistUser(ctx context.Context, user *User) error {
	if err := c.cache.Set(ctx, KeyUser, user, UserTTL); err != nil {
		return err
	}
	if validRole(user.Role) {
		return c.cache.Set(ctx, KeyPreferredRole, user.Role, PreferredRoleTTL)
	}
	return nil
}

func (c *Client) dashboardKeys() []string {
	return []string{keyDashboard + RoleClient, keyDashboard + RoleFreelancer}
}

func (c *Client) signChallenge(ctx context.Context) (walletProof, error) {
	if c.wallet == nil {
		return walletProof{}, ErrNoWallet
	}
	accounts, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		return walletProof{}, fmt.Errorf("authclient: request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return walletProof{}, ErrNoAccounts
	}
	address := accounts[0]

	var ch challenge
	if err := c.do(ctx, http.MethodGet, "/auth/wallet/challenge?address="+url.QueryEscape(address), nil, false, &ch); err != nil {
		return walletProof{}, err
	}
	sig, err := c.wallet.PersonalSign(ctx, ch.Message, address)
	if err != nil {
		return walletProof{}, fmt.Errorf("authclient: sign challenge: %w", err)
	}
	return walletProof{Address: address, Signature: sig, Message: ch.Message}, nil
}

// do sends a JSON request and decodes a 2xx body into out. Other statuses
// come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("authclient: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token := c.tokens.Token()
		if token == "" {
			return ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("authclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("authclient: decode %s: %w", path, err)
	}
	return nil
}
