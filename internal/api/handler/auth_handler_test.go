package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

const testWallet = "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"

type stubAuthService struct {
	signupFn          func(ctx context.Context, in ports.PasswordSignupInput) (*domain.AuthResult, error)
	loginFn           func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	walletChallengeFn func(ctx context.Context, address string) (*domain.WalletChallenge, error)
	walletLoginFn     func(ctx context.Context, proof ports.WalletProof) (*domain.AuthResult, error)
	walletSignupFn    func(ctx context.Context, in ports.WalletSignupInput) (*domain.AuthResult, error)
	linkWalletFn      func(ctx context.Context, identityID string, proof ports.WalletProof) (*domain.Identity, error)
	unlinkWalletFn    func(ctx context.Context, identityID string) (*domain.Identity, error)
	updateProfileFn   func(ctx context.Context, identityID string, update ports.ProfileUpdate, wallet *ports.WalletProof) (*domain.Identity, error)
}

func (s *stubAuthService) Signup(ctx context.Context, in ports.PasswordSignupInput) (*domain.AuthResult, error) {
	return s.signupFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) WalletChallenge(ctx context.Context, address string) (*domain.WalletChallenge, error) {
	return s.walletChallengeFn(ctx, address)
}

func (s *stubAuthService) WalletLogin(ctx context.Context, proof ports.WalletProof) (*domain.AuthResult, error) {
	return s.walletLoginFn(ctx, proof)
}

func (s *stubAuthService) WalletSignup(ctx context.Context, in ports.WalletSignupInput) (*domain.AuthResult, error) {
	return s.walletSignupFn(ctx, in)
}

func (s *stubAuthService) LinkWallet(ctx context.Context, identityID string, proof ports.WalletProof) (*domain.Identity, error) {
	return s.linkWalletFn(ctx, identityID, proof)
}

func (s *stubAuthService) UnlinkWallet(ctx context.Context, identityID string) (*domain.Identity, error) {
	return s.unlinkWalletFn(ctx, identityID)
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, identityID string, update ports.ProfileUpdate, wallet *ports.WalletProof) (*domain.Identity, error) {
	return s.updateProfileFn(ctx, identityID, update, wallet)
}

// ---- helpers ----

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func authResult(identity *domain.Identity) *domain.AuthResult {
	return &domain.AuthResult{
		Token:    "token123",
		Session:  &domain.Session{SubjectID: identity.ID, Role: identity.Role, ExpiresAt: time.Unix(1700000000, 0).UTC()},
		Identity: identity,
	}
}

func freelancer() *domain.Identity {
	return &domain.Identity{
		ID:           "id-1",
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleFreelancer,
		Profile:      domain.FreelancerProfile{Skills: []string{"go"}, HourlyRate: 50},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func validationPaths(t *testing.T, err error) []string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *domain.ValidationError, got %v", err)
	}
	paths := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		paths = append(paths, f.Path)
	}
	return paths
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// ---- signup ----

func TestAuthHandler_Signup_Success(t *testing.T) {
	stub := &stubAuthService{
		signupFn: func(_ context.Context, in ports.PasswordSignupInput) (*domain.AuthResult, error) {
			if in.Email != "alice@example.com" || in.Role != domain.RoleFreelancer || in.Name != "Alice" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if in.Profile.Skills == nil || len(*in.Profile.Skills) != 1 {
				t.Fatalf("expected skills in profile patch, got %+v", in.Profile)
			}
			if in.Wallet != nil {
				t.Fatal("expected no wallet proof")
			}
			return authResult(freelancer()), nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/signup",
		`{"email":"alice@example.com","password":"Secret123","name":"Alice","role":"freelancer","profile":{"skills":["go"]}}`)
	if err := h.Signup(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["token"] != "token123" {
		t.Fatalf("expected token, got %v", resp["token"])
	}
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["email"] != "alice@example.com" || user["role"] != "freelancer" || user["hasPassword"] != true {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatal("password hash must not be rendered")
	}
}

func TestAuthHandler_Signup_WithWalletData(t *testing.T) {
	stub := &stubAuthService{
		signupFn: func(_ context.Context, in ports.PasswordSignupInput) (*domain.AuthResult, error) {
			if in.Wallet == nil || in.Wallet.Address != testWallet || in.Wallet.Signature != "0xsig" {
				t.Fatalf("expected wallet proof, got %+v", in.Wallet)
			}
			return authResult(freelancer()), nil
		},
	}
	h := NewAuthHandler(stub)

	body := `{"email":"alice@example.com","password":"Secret123","name":"Alice","role":"freelancer",
		"walletData":{"address":"` + testWallet + `","signature":"0xsig","message":"hello"}}`
	c, rec := newContext(http.MethodPost, "/auth/signup", body)
	if err := h.Signup(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestAuthHandler_Signup_ValidationFailure(t *testing.T) {
	stub := &stubAuthService{
		signupFn: func(context.Context, ports.PasswordSignupInput) (*domain.AuthResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newContext(http.MethodPost, "/auth/signup",
		`{"email":"not-an-email","password":"short","name":"","role":"admin","profile":{"hourlyRate":-1}}`)
	paths := validationPaths(t, h.Signup(c))

	for _, want := range []string{"email", "password", "name", "role", "profile.hourlyRate"} {
		if !contains(paths, want) {
			t.Fatalf("expected %q among failing paths %v", want, paths)
		}
	}
}

func TestAuthHandler_Signup_InvalidPayload(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, _ := newContext(http.MethodPost, "/auth/signup", "not-json")
	err := h.Signup(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestAuthHandler_Signup_DuplicateEmailPassesThrough(t *testing.T) {
	stub := &stubAuthService{
		signupFn: func(context.Context, ports.PasswordSignupInput) (*domain.AuthResult, error) {
			return nil, domain.ErrDuplicateEmail
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/signup",
		`{"email":"alice@example.com","password":"Secret123","name":"Alice","role":"client"}`)
	if err := h.Signup(c); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Fatal("expected nothing written before the error handler runs")
	}
}

func TestAuthHandler_ClientSignup_ForcesClientRole(t *testing.T) {
	stub := &stubAuthService{
		signupFn: func(_ context.Context, in ports.PasswordSignupInput) (*domain.AuthResult, error) {
			if in.Role != domain.RoleClient {
				t.Fatalf("expected client role, got %q", in.Role)
			}
			if in.Profile.Industry == nil || *in.Profile.Industry != "retail" {
				t.Fatalf("expected industry in patch, got %+v", in.Profile)
			}
			identity := &domain.Identity{ID: "id-2", Email: in.Email, Role: domain.RoleClient, Profile: domain.ClientProfile{Industry: "retail"}}
			return authResult(identity), nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/client/signup",
		`{"email":"bob@example.com","password":"Secret123","name":"Bob","profile":{"industry":"retail"}}`)
	if err := h.ClientSignup(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	user := decode(t, rec)["user"].(map[string]any)
	profile := user["profile"].(map[string]any)
	if profile["industry"] != "retail" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

// ---- login ----

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, email, password string) (*domain.AuthResult, error) {
			if email != "alice@example.com" || password != "Secret123" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return authResult(freelancer()), nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"Secret123"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["token"] != "token123" || resp["expiresAt"] == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, string, string) (*domain.AuthResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newContext(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"bad"}`)
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, _ := newContext(http.MethodPost, "/auth/login", `{}`)
	paths := validationPaths(t, h.Login(c))
	if !contains(paths, "email") || !contains(paths, "password") {
		t.Fatalf("expected email and password failures, got %v", paths)
	}
}

// ---- wallet ----

func TestAuthHandler_WalletChallenge(t *testing.T) {
	expires := time.Unix(1700000300, 0).UTC()
	stub := &stubAuthService{
		walletChallengeFn: func(_ context.Context, address string) (*domain.WalletChallenge, error) {
			if address != testWallet {
				t.Fatalf("unexpected address %q", address)
			}
			return &domain.WalletChallenge{Address: address, Nonce: "n1", Message: "sign me", ExpiresAt: expires}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodGet, "/auth/wallet/challenge?address="+testWallet, "")
	if err := h.WalletChallenge(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["nonce"] != "n1" || resp["message"] != "sign me" || resp["address"] != testWallet {
		t.Fatalf("unexpected challenge payload: %+v", resp)
	}
}

func TestAuthHandler_WalletLogin_NotRegistered(t *testing.T) {
	stub := &stubAuthService{
		walletLoginFn: func(_ context.Context, proof ports.WalletProof) (*domain.AuthResult, error) {
			return nil, &domain.WalletNotRegisteredError{Address: proof.Address}
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newContext(http.MethodPost, "/auth/wallet",
		`{"address":"`+testWallet+`","signature":"0xsig","message":"hello"}`)
	err := h.WalletLogin(c)

	var notRegistered *domain.WalletNotRegisteredError
	if !errors.As(err, &notRegistered) || notRegistered.Address != testWallet {
		t.Fatalf("expected WalletNotRegisteredError, got %v", err)
	}
}

func TestAuthHandler_WalletLogin_InvalidAddress(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, _ := newContext(http.MethodPost, "/auth/wallet", `{"address":"0x1234","signature":"0xsig","message":"hello"}`)
	paths := validationPaths(t, h.WalletLogin(c))
	if !contains(paths, "address") {
		t.Fatalf("expected address failure, got %v", paths)
	}
}

func TestAuthHandler_WalletSignup_Success(t *testing.T) {
	stub := &stubAuthService{
		walletSignupFn: func(_ context.Context, in ports.WalletSignupInput) (*domain.AuthResult, error) {
			if in.Proof.Address != testWallet || in.Role != domain.RoleClient {
				t.Fatalf("unexpected input: %+v", in)
			}
			identity := &domain.Identity{ID: "id-3", Name: domain.ShortWallet(testWallet), WalletAddress: testWallet, Role: domain.RoleClient, Profile: domain.ClientProfile{}}
			res := authResult(identity)
			res.Created = true
			return res, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/wallet/signup",
		`{"address":"`+testWallet+`","signature":"0xsig","message":"hello","role":"client"}`)
	if err := h.WalletSignup(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	user := decode(t, rec)["user"].(map[string]any)
	if user["walletAddress"] != testWallet || user["hasPassword"] != false {
		t.Fatalf("unexpected user payload: %+v", user)
	}
}

// ---- authenticated routes ----

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, rec := newContext(http.MethodGet, "/auth/me", "")
	c.Set("identity", freelancer())
	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	user := decode(t, rec)["user"].(map[string]any)
	if user["id"] != "id-1" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
}

func TestAuthHandler_Me_WithoutIdentity(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, _ := newContext(http.MethodGet, "/auth/me", "")
	err := h.Me(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestAuthHandler_UpdateProfile_WalletRequiresData(t *testing.T) {
	stub := &stubAuthService{
		updateProfileFn: func(_ context.Context, id string, update ports.ProfileUpdate, wallet *ports.WalletProof) (*domain.Identity, error) {
			if id != "id-1" {
				t.Fatalf("unexpected id %q", id)
			}
			if update.Name == nil || *update.Name != "Alice B" {
				t.Fatalf("expected name change, got %+v", update)
			}
			if wallet == nil || wallet.Address != testWallet || wallet.Signature != "" {
				t.Fatalf("expected unsigned wallet proof to be forwarded, got %+v", wallet)
			}
			updated := freelancer()
			updated.Name = *update.Name
			return updated, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPatch, "/auth/users/profile",
		`{"name":"Alice B","walletAddress":"`+testWallet+`"}`)
	c.Set("identity", freelancer())
	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["user"].(map[string]any)["name"] != "Alice B" {
		t.Fatal("expected updated name in response")
	}
}

func TestAuthHandler_UpdateProfile_RoleSwitch(t *testing.T) {
	stub := &stubAuthService{
		updateProfileFn: func(_ context.Context, _ string, update ports.ProfileUpdate, wallet *ports.WalletProof) (*domain.Identity, error) {
			if update.Role == nil || *update.Role != domain.RoleClient {
				t.Fatalf("expected role change, got %+v", update.Role)
			}
			if wallet != nil {
				t.Fatal("expected no wallet change")
			}
			return &domain.Identity{ID: "id-1", Role: domain.RoleClient, Profile: domain.ClientProfile{}}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newContext(http.MethodPatch, "/auth/users/profile", `{"role":"client"}`)
	c.Set("identity", freelancer())
	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestAuthHandler_LinkWallet(t *testing.T) {
	stub := &stubAuthService{
		linkWalletFn: func(_ context.Context, id string, proof ports.WalletProof) (*domain.Identity, error) {
			if id != "id-1" || proof.Address != testWallet || proof.Message != "hello" {
				t.Fatalf("unexpected args: %s %+v", id, proof)
			}
			linked := freelancer()
			linked.WalletAddress = testWallet
			return linked, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/users/wallet",
		`{"address":"`+testWallet+`","signature":"0xsig","message":"hello"}`)
	c.Set("identity", freelancer())
	if err := h.LinkWallet(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if decode(t, rec)["user"].(map[string]any)["walletAddress"] != testWallet {
		t.Fatal("expected linked wallet in response")
	}
}

func TestAuthHandler_UnlinkWallet_LastCredential(t *testing.T) {
	stub := &stubAuthService{
		unlinkWalletFn: func(context.Context, string) (*domain.Identity, error) {
			return nil, domain.ErrLastCredential
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newContext(http.MethodDelete, "/auth/users/wallet", "")
	c.Set("identity", freelancer())
	if err := h.UnlinkWallet(c); !errors.Is(err, domain.ErrLastCredential) {
		t.Fatalf("expected ErrLastCredential, got %v", err)
	}
}

func TestAttemptResult(t *testing.T) {
	cases := map[string]error{
		"not_registered":      &domain.WalletNotRegisteredError{Address: testWallet},
		"invalid_credentials": domain.ErrInvalidCredentials,
		"challenge_invalid":   domain.ErrChallengeInvalid,
		"error":               errors.New("boom"),
	}
	for want, err := range cases {
		if got := attemptResult(err); got != want {
			t.Errorf("attemptResult(%v) = %q, want %q", err, got, want)
		}
	}
}
