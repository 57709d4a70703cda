package domain

import (
	"context"
	"time"
)

// AuthEventKind classifies audit records.
type AuthEventKind string

const (
	EventSignup        AuthEventKind = "signup"
	EventLogin         AuthEventKind = "login"
	EventWalletLogin   AuthEventKind = "wallet_login"
	EventWalletSignup  AuthEventKind = "wallet_signup"
	EventWalletLinked  AuthEventKind = "wallet_linked"
	EventWalletRemoved AuthEventKind = "wallet_unlinked"
	EventProfileUpdate AuthEventKind = "profile_updated"
)

// AuthEvent is an audit record of an authentication-relevant action.
type AuthEvent struct {
	Kind          AuthEventKind
	SubjectID     string
	Email         string
	WalletAddress string
	Success       bool
	Reason        string
	RequestID     string
	At            time.Time
}

// Key groups events of the same principal so their order is preserved.
func (e AuthEvent) Key() string {
	switch {
	case e.SubjectID != "":
		return e.SubjectID
	case e.Email != "":
		return e.Email
	default:
		return e.WalletAddress
	}
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying the request id for audit records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
