package ports

import (
	"context"
	"time"

	"github.com/gigmarket/identity/internal/core/domain"
)

// WalletVerifier checks that a signature over message was produced by address.
// It never returns an error: anything it cannot validate is false.
type WalletVerifier interface {
	VerifyWalletSignature(ctx context.Context, address, signature, message string) bool
}

// ChallengeStore keeps single-use wallet challenges.
type ChallengeStore interface {
	Save(ctx context.Context, challenge *domain.WalletChallenge, ttl time.Duration) error
	// Consume deletes the challenge for address when its message matches.
	// It returns domain.ErrChallengeInvalid when there is none or it does not match.
	Consume(ctx context.Context, address, message string) error
	// Peek reports whether message is the live challenge for address without consuming it.
	Peek(ctx context.Context, address, message string) (bool, error)
}
