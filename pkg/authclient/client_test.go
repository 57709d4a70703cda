package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gigmarket/identity/internal/core/credential"
)

// fakeAPI is an in-memory stand-in for the identity service.
type fakeAPI struct {
	t        *testing.T
	verifier *credential.WalletVerifier

	mu         sync.Mutex
	user       User
	wallets    map[string]bool
	challenges map[string]string
	lastPatch  json.RawMessage

	meFails        atomic.Bool
	dashboardFails atomic.Bool
	dashboardCalls atomic.Int32
	meCalls        atomic.Int32
	dashboardGate  chan struct{}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		t:          t,
		verifier:   credential.NewWalletVerifier(nil, zerolog.Nop()),
		user:       User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: RoleFreelancer, HasPassword: true},
		wallets:    map[string]bool{},
		challenges: map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", api.login)
	mux.HandleFunc("GET /auth/me", api.me)
	mux.HandleFunc("GET /auth/wallet/challenge", api.challenge)
	mux.HandleFunc("POST /auth/wallet", api.walletLogin)
	mux.HandleFunc("POST /auth/wallet/signup", api.walletSignup)
	mux.HandleFunc("PATCH /auth/users/profile", api.updateProfile)
	mux.HandleFunc("GET /dashboard/{role}", api.dashboard)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *fakeAPI) issue(w http.ResponseWriter, status int) {
	a.mu.Lock()
	u := a.user
	a.mu.Unlock()
	writeJSON(w, status, authResponse{Token: "tok-1", ExpiresAt: time.Now().Add(time.Hour), User: u})
}

func (a *fakeAPI) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer tok-1"
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body["email"] != "alice@example.com" || body["password"] != "Secret123" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	a.issue(w, http.StatusOK)
}

func (a *fakeAPI) me(w http.ResponseWriter, r *http.Request) {
	a.meCalls.Add(1)
	if !a.authorized(r) || a.meFails.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
		return
	}
	a.mu.Lock()
	u := a.user
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, userEnvelope{User: u})
}

func (a *fakeAPI) challenge(w http.ResponseWriter, r *http.Request) {
	addr := strings.ToLower(r.URL.Query().Get("address"))
	msg := "gigmarket wants you to sign in with " + addr + " nonce " + time.Now().Format(time.RFC3339Nano)
	a.mu.Lock()
	a.challenges[addr] = msg
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, challenge{Address: addr, Nonce: "n", Message: msg})
}

func (a *fakeAPI) checkProof(w http.ResponseWriter, r *http.Request, dst any) (walletProof, bool) {
	var raw json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&raw)
	var proof walletProof
	_ = json.Unmarshal(raw, &proof)
	if dst != nil {
		_ = json.Unmarshal(raw, dst)
	}

	a.mu.Lock()
	want := a.challenges[strings.ToLower(proof.Address)]
	a.mu.Unlock()
	if want == "" || want != proof.Message ||
		!a.verifier.VerifyWalletSignature(r.Context(), proof.Address, proof.Signature, proof.Message) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return proof, false
	}
	return proof, true
}

func (a *fakeAPI) walletLogin(w http.ResponseWriter, r *http.Request) {
	proof, ok := a.checkProof(w, r, nil)
	if !ok {
		return
	}
	a.mu.Lock()
	known := a.wallets[strings.ToLower(proof.Address)]
	a.mu.Unlock()
	if !known {
		writeJSON(w, http.StatusNotFound, APIError{Message: "wallet not registered", WalletAddress: proof.Address, NeedsRegistration: true})
		return
	}
	a.issue(w, http.StatusOK)
}

func (a *fakeAPI) walletSignup(w http.ResponseWriter, r *http.Request) {
	var extra WalletSignupRequest
	proof, ok := a.checkProof(w, r, &extra)
	if !ok {
		return
	}
	a.mu.Lock()
	a.wallets[strings.ToLower(proof.Address)] = true
	a.user = User{ID: "u2", Name: extra.Name, WalletAddress: strings.ToLower(proof.Address), Role: extra.Role}
	a.mu.Unlock()
	a.issue(w, http.StatusCreated)
}

func (a *fakeAPI) updateProfile(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
		return
	}
	var raw json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&raw)
	var update ProfileUpdate
	_ = json.Unmarshal(raw, &update)
	a.mu.Lock()
	a.lastPatch = raw
	if update.Role != nil {
		a.user.Role = *update.Role
	}
	if update.Name != nil {
		a.user.Name = *update.Name
	}
	u := a.user
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, userEnvelope{User: u})
}

func (a *fakeAPI) dashboard(w http.ResponseWriter, r *http.Request) {
	a.dashboardCalls.Add(1)
	if a.dashboardGate != nil {
		<-a.dashboardGate
	}
	if !a.authorized(r) || a.dashboardFails.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, Dashboard{Role: r.PathValue("role"), Stats: map[string]int64{"bidsPlaced": 7}, GeneratedAt: time.Now()})
}

// ---- helpers ----

func newTestClient(t *testing.T, srv *httptest.Server, wallet WalletProvider) (*Client, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Now())
	c, err := New(Options{BaseURL: srv.URL, Clock: clock, Wallet: wallet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, clock
}

func loggedIn(t *testing.T, c *Client) {
	t.Helper()
	if _, err := c.Login(context.Background(), "alice@example.com", "Secret123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

// ---- password session ----

func TestClient_LoginPersistsSession(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)
	ctx := context.Background()

	user, err := c.Login(ctx, "alice@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "u1" || c.Token() != "tok-1" {
		t.Fatalf("unexpected session: %+v token=%q", user, c.Token())
	}

	cached, err := c.CurrentUser(ctx)
	if err != nil || cached.ID != "u1" {
		t.Fatalf("CurrentUser: %+v %v", cached, err)
	}
	if api.meCalls.Load() != 0 {
		t.Fatal("expected CurrentUser to be served from cache")
	}
	if role := c.CurrentRole(ctx); role != RoleFreelancer {
		t.Fatalf("expected freelancer role, got %q", role)
	}
}

func TestClient_LoginInvalidCredentials(t *testing.T) {
	_, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)

	_, err := c.Login(context.Background(), "alice@example.com", "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid credentials" {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if c.Token() != "" {
		t.Fatal("expected no token after a failed login")
	}
}

func TestClient_CurrentUserReloadsAfterTTL(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, clock := newTestClient(t, srv, nil)
	loggedIn(t, c)

	clock.Advance(UserTTL)
	if _, err := c.CurrentUser(context.Background()); err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if api.meCalls.Load() != 1 {
		t.Fatalf("expected one /auth/me call, got %d", api.meCalls.Load())
	}
}

func TestClient_CurrentUserFailureClearsSession(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, clock := newTestClient(t, srv, nil)
	ctx := context.Background()
	loggedIn(t, c)
	if err := c.SetPreferredRole(ctx, RoleClient); err != nil {
		t.Fatalf("SetPreferredRole: %v", err)
	}

	clock.Advance(UserTTL)
	api.meFails.Store(true)

	if _, err := c.CurrentUser(ctx); err == nil {
		t.Fatal("expected CurrentUser to fail")
	}
	if c.Token() != "" {
		t.Fatal("expected the token to be cleared")
	}
	if _, err := c.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated afterwards, got %v", err)
	}
	if role := c.CurrentRole(ctx); role != RoleFreelancer {
		t.Fatalf("expected default role after logout, got %q", role)
	}
}

func TestClient_Logout(t *testing.T) {
	_, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)
	ctx := context.Background()
	loggedIn(t, c)

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.Token() != "" {
		t.Fatal("expected token to be cleared")
	}
	if _, err := c.FetchDashboard(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestClient_SessionSurvivesReload(t *testing.T) {
	api, srv := newFakeAPI(t)
	store := NewMemoryStore()
	clock := clockwork.NewFakeClockAt(time.Now())
	ctx := context.Background()

	first, err := New(Options{BaseURL: srv.URL, Clock: clock, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loggedIn(t, first)
	first.Close()

	second, err := New(Options{BaseURL: srv.URL, Clock: clock, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(second.Close)

	if second.Token() != "tok-1" {
		t.Fatalf("expected the stored token after reload, got %q", second.Token())
	}
	user, err := second.CurrentUser(ctx)
	if err != nil || user.ID != "u1" {
		t.Fatalf("CurrentUser after reload: %+v %v", user, err)
	}
	if api.meCalls.Load() != 0 {
		t.Fatal("expected the reloaded user to come from the store")
	}
	if d, err := second.FetchDashboard(ctx); err != nil || d.Placeholder {
		t.Fatalf("expected a live dashboard after reload, got %+v %v", d, err)
	}
}

func TestClient_ExpiredStoredTokenIsNotRestored(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := NewMemoryStore()
	clock := clockwork.NewFakeClockAt(time.Now())

	first, err := New(Options{BaseURL: srv.URL, Clock: clock, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loggedIn(t, first)
	first.Close()

	clock.Advance(2 * time.Hour)
	second, err := New(Options{BaseURL: srv.URL, Clock: clock, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(second.Close)
	if second.Token() != "" {
		t.Fatalf("expected no token once it expired, got %q", second.Token())
	}
}

func TestClient_CachedUserWithoutTokenIsDropped(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)
	ctx := context.Background()
	loggedIn(t, c)

	// The user snapshot is still cached but the token is gone.
	c.tokens.Clear()
	if err := c.cache.Invalidate(ctx, KeyToken); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, err := c.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	var user User
	if ok, _ := c.cache.Get(ctx, KeyUser, &user); ok {
		t.Fatal("expected the cached user to be dropped")
	}
	if api.meCalls.Load() != 0 {
		t.Fatal("expected no /auth/me call without a token")
	}
}

// ---- role coherence ----

func TestClient_RoleFollowsProfileUpdate(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)
	ctx := context.Background()
	loggedIn(t, c)

	if _, err := c.FetchDashboard(ctx); err != nil {
		t.Fatalf("FetchDashboard: %v", err)
	}

	role := RoleClient
	user, err := c.UpdateProfile(ctx, ProfileUpdate{Role: &role})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.Role != RoleClient || c.CurrentRole(ctx) != RoleClient {
		t.Fatalf("expected client role, got user=%q current=%q", user.Role, c.CurrentRole(ctx))
	}

	// The preference survives the user entry expiring.
	if err := c.cache.Invalidate(ctx, KeyUser); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if c.CurrentRole(ctx) != RoleClient {
		t.Fatal("expected preferred role to be kept")
	}

	d, err := c.FetchDashboard(ctx)
	if err != nil || d.Role != RoleClient {
		t.Fatalf("expected client dashboard, got %+v %v", d, err)
	}
	if api.dashboardCalls.Load() != 2 {
		t.Fatalf("expected a fresh fetch for the new role, got %d calls", api.dashboardCalls.Load())
	}
}

func TestClient_UpdateProfileSendsClearedFields(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)
	ctx := context.Background()
	loggedIn(t, c)

	bio, rate := "", 0.0
	wallet := "0x52908400098527886e0f7030069857d2e4169ee7"
	_, err := c.UpdateProfile(ctx, ProfileUpdate{
		WalletAddress: &wallet,
		WalletData:    &WalletData{Signature: "0xsig", Message: "msg"},
		Profile:       &ProfilePatch{Bio: &bio, HourlyRate: &rate},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	api.mu.Lock()
	raw := api.lastPatch
	api.mu.Unlock()
	var body struct {
		WalletAddress string                     `json:"walletAddress"`
		WalletData    map[string]string          `json:"walletData"`
		Profile       map[string]json.RawMessage `json:"profile"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if body.WalletAddress != wallet || body.WalletData["signature"] != "0xsig" || body.WalletData["message"] != "msg" {
		t.Fatalf("expected wallet fields in patch, got %s", raw)
	}
	if string(body.Profile["bio"]) != `""` || string(body.Profile["hourlyRate"]) != "0" {
		t.Fatalf("expected cleared bio and zero rate in patch, got %s", raw)
	}
	if _, ok := body.Profile["skills"]; ok {
		t.Fatalf("expected unset skills to be omitted, got %s", raw)
	}
}

func TestClient_SetPreferredRoleRejectsUnknown(t *testing.T) {
	_, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)
	if err := c.SetPreferredRole(context.Background(), "admin"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

// ---- dashboard ----

func TestClient_FetchDashboardDeduplicates(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.dashboardGate = make(chan struct{})
	c, _ := newTestClient(t, srv, nil)
	loggedIn(t, c)

	var wg sync.WaitGroup
	results := make([]*Dashboard, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.FetchDashboard(context.Background())
		}(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for api.dashboardCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(api.dashboardGate)
	wg.Wait()

	if got := api.dashboardCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one HTTP call, got %d", got)
	}
	for i, d := range results {
		if d == nil || d.Stats["bidsPlaced"] != 7 {
			t.Fatalf("caller %d: unexpected dashboard %+v", i, d)
		}
	}
}

func TestClient_FetchDashboardPlaceholderThenRecovery(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, clock := newTestClient(t, srv, nil)
	ctx := context.Background()
	loggedIn(t, c)

	api.dashboardFails.Store(true)
	d, err := c.FetchDashboard(ctx)
	if err != nil {
		t.Fatalf("expected no error on a failed best-effort fetch, got %v", err)
	}
	if !d.Placeholder || d.Role != RoleFreelancer {
		t.Fatalf("expected placeholder, got %+v", d)
	}

	// Served from the placeholder until it expires.
	api.dashboardFails.Store(false)
	if d, _ := c.FetchDashboard(ctx); !d.Placeholder {
		t.Fatal("expected cached placeholder before its ttl elapses")
	}

	clock.Advance(PlaceholderTTL)
	d, err = c.FetchDashboard(ctx)
	if err != nil || d.Placeholder || d.Stats["bidsPlaced"] != 7 {
		t.Fatalf("expected live dashboard to overwrite placeholder, got %+v %v", d, err)
	}

	clock.Advance(PlaceholderTTL)
	if d, _ := c.FetchDashboard(ctx); d.Placeholder {
		t.Fatal("live dashboard should outlive the placeholder ttl")
	}
	if api.dashboardCalls.Load() != 2 {
		t.Fatalf("expected 2 dashboard calls, got %d", api.dashboardCalls.Load())
	}
}

// ---- wallet ----

func TestClient_ConnectWalletNeedsRegistrationThenSignup(t *testing.T) {
	_, srv := newFakeAPI(t)
	wallet, err := GenerateKeyWallet()
	if err != nil {
		t.Fatalf("GenerateKeyWallet: %v", err)
	}
	c, _ := newTestClient(t, srv, wallet)
	ctx := context.Background()

	_, err = c.ConnectWallet(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || !apiErr.NeedsRegistration {
		t.Fatalf("expected needsRegistration 404, got %v", err)
	}
	if apiErr.WalletAddress != wallet.Address() {
		t.Fatalf("expected wallet address %s, got %s", wallet.Address(), apiErr.WalletAddress)
	}

	user, err := c.WalletSignup(ctx, WalletSignupRequest{Name: "Wally", Role: RoleClient})
	if err != nil {
		t.Fatalf("WalletSignup: %v", err)
	}
	if user.WalletAddress != wallet.Address() || user.Role != RoleClient {
		t.Fatalf("unexpected user: %+v", user)
	}
	if c.CurrentRole(ctx) != RoleClient {
		t.Fatal("expected role to follow the new user")
	}

	if _, err := c.ConnectWallet(ctx); err != nil {
		t.Fatalf("ConnectWallet after signup: %v", err)
	}
}

func TestClient_WalletFlowsNeedProvider(t *testing.T) {
	_, srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv, nil)
	if _, err := c.ConnectWallet(context.Background()); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestKeyWallet_SignatureVerifies(t *testing.T) {
	wallet, err := GenerateKeyWallet()
	if err != nil {
		t.Fatalf("GenerateKeyWallet: %v", err)
	}
	ctx := context.Background()
	sig, err := wallet.PersonalSign(ctx, "hello", wallet.Address())
	if err != nil {
		t.Fatalf("PersonalSign: %v", err)
	}
	v := credential.NewWalletVerifier(nil, zerolog.Nop())
	if !v.VerifyWalletSignature(ctx, wallet.Address(), sig, "hello") {
		t.Fatal("expected signature to verify")
	}
	if _, err := wallet.PersonalSign(ctx, "hello", "0x0000000000000000000000000000000000000001"); err == nil {
		t.Fatal("expected error signing for a foreign address")
	}
}
