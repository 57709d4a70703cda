package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gigmarket/identity/internal/core/domain"
)

func TestRBAC_Allows(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(identityKey, &domain.Identity{ID: "u1", Role: domain.RoleFreelancer})

	called := false
	mw := RBAC(domain.RoleClient, domain.RoleFreelancer)
	handler := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRBAC_Forbidden(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(identityKey, &domain.Identity{ID: "u1", Role: domain.RoleFreelancer})

	handler := RBAC(domain.RoleClient)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRBAC_WithoutAuth(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RBAC(domain.RoleClient)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// A freelancer token on a client route: authenticated, then forbidden.
func TestAuthThenRBAC_FreelancerOnClientRoute(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	f := &domain.Identity{ID: "f1", Role: domain.RoleFreelancer}
	loader := &stubLoader{identities: map[string]*domain.Identity{"f1": f}}
	token, _, err := issuer.Issue(f, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := serve(t, []echo.MiddlewareFunc{Auth(issuer, loader), RBAC(domain.RoleClient)}, "Bearer "+token, mustNotReach(t))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
