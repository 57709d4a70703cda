package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gigmarket/identity/internal/api/metrics"
	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

const (
	identityKey = "identity"
	sessionKey  = "session"
)

// Auth verifies the bearer token and loads the identity it names. On success
// the identity and session are available through CurrentIdentity and
// CurrentSession. Every rejection is a 401; store failures pass through to the
// error handler.
func Auth(verifier ports.SessionVerifier, loader ports.SessionIdentityLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return deny("no_token", "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return deny("invalid_token", "invalid authorization header")
			}

			sess, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) {
					return deny("expired", "session expired")
				}
				return deny("invalid_token", "invalid token")
			}

			identity, err := loader.LoadIdentity(c.Request().Context(), sess)
			if err != nil {
				if errors.Is(err, domain.ErrIdentityNotFound) {
					return deny("user_not_found", "user not found")
				}
				return err
			}

			c.Set(sessionKey, sess)
			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// CurrentIdentity returns the identity loaded by Auth.
func CurrentIdentity(c echo.Context) (*domain.Identity, bool) {
	identity, ok := c.Get(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

// CurrentSession returns the session verified by Auth.
func CurrentSession(c echo.Context) (*domain.Session, bool) {
	sess, ok := c.Get(sessionKey).(*domain.Session)
	return sess, ok && sess != nil
}

func deny(reason, message string) error {
	metrics.AccessDeniedTotal.WithLabelValues(reason).Inc()
	if reason == "forbidden" {
		return echo.NewHTTPError(http.StatusForbidden, message)
	}
	return echo.NewHTTPError(http.StatusUnauthorized, message)
}
