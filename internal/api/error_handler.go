package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/pkg/logger"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}

// walletNotRegisteredResponse tells a wallet client to offer signup.
type walletNotRegisteredResponse struct {
	Error             string `json:"error"`
	WalletAddress     string `json:"walletAddress"`
	NeedsRegistration bool   `json:"needsRegistration"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to their HTTP status codes.
//   - Logs unexpected errors without leaking details to the client.
//   - Renders {"error": "...", "details": [...]}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var notRegistered *domain.WalletNotRegisteredError
		if errors.As(err, &notRegistered) {
			_ = c.JSON(http.StatusNotFound, walletNotRegisteredResponse{
				Error:             "wallet not registered",
				WalletAddress:     notRegistered.Address,
				NeedsRegistration: true,
			})
			return
		}

		code, body := resolveError(err, logger.FromContext(c.Request().Context(), log), c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, middleware rejections).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil && he.Code >= http.StatusInternalServerError {
			log.Error().Err(he.Internal).Str("path", c.Path()).Msg("http error")
		}
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Fields}
	}

	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusBadRequest, conflict(err, "email")
	case errors.Is(err, domain.ErrDuplicateWallet), errors.Is(err, domain.ErrWalletAlreadyLinked):
		return http.StatusBadRequest, conflict(err, "walletAddress")
	case errors.Is(err, domain.ErrLastCredential):
		return http.StatusBadRequest, conflict(err, "walletAddress")
	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest, conflict(err, "role")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "Invalid credentials"}
	case errors.Is(err, domain.ErrChallengeInvalid),
		errors.Is(err, domain.ErrTokenMissing),
		errors.Is(err, domain.ErrTokenMalformed),
		errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "access forbidden"}
	case errors.Is(err, domain.ErrIdentityNotFound):
		return http.StatusNotFound, errorResponse{Error: "user not found"}
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("path", c.Path()).Msg("request timed out")
		return http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

func conflict(err error, path string) errorResponse {
	return errorResponse{
		Error:   err.Error(),
		Details: []domain.FieldError{{Path: path, Message: err.Error()}},
	}
}
