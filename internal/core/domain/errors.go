package domain

import (
	"errors"
	"strings"
)

var (
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateWallet     = errors.New("wallet address already registered")
	ErrWalletAlreadyLinked = errors.New("wallet address is linked to another account")
	ErrLastCredential      = errors.New("cannot remove the only sign-in method")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrChallengeInvalid    = errors.New("wallet challenge is invalid or expired")
	ErrForbidden           = errors.New("access forbidden")
	ErrInvalidRole         = errors.New("invalid role")

	ErrTokenMissing   = errors.New("missing session token")
	ErrTokenMalformed = errors.New("invalid session token")
	ErrTokenExpired   = errors.New("session token expired")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError is returned when input is rejected before any store mutation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Path+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NewValidationError is a shorthand for a single-field ValidationError.
func NewValidationError(path, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Path: path, Message: message}}}
}

// WalletNotRegisteredError is returned when a valid wallet signature belongs to an
// address with no identity. Clients should offer wallet signup.
type WalletNotRegisteredError struct {
	Address string
}

func (e *WalletNotRegisteredError) Error() string {
	return "wallet not registered: " + e.Address
}

func (e *WalletNotRegisteredError) Unwrap() error {
	return ErrIdentityNotFound
}
