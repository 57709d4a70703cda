package ports

import (
	"context"
	"time"

	"github.com/gigmarket/identity/internal/core/domain"
)

// SessionVerifier validates a session token.
type SessionVerifier interface {
	Verify(token string) (*domain.Session, error)
}

// SessionIssuer mints and validates session tokens.
type SessionIssuer interface {
	SessionVerifier
	Issue(identity *domain.Identity, ttl time.Duration) (string, *domain.Session, error)
}

// SessionIdentityLoader resolves the identity a verified session belongs to.
type SessionIdentityLoader interface {
	LoadIdentity(ctx context.Context, sess *domain.Session) (*domain.Identity, error)
}
