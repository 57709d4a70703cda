package ports

import (
	"context"

	"github.com/gigmarket/identity/internal/core/domain"
)

// IdentityRepository defines persistence operations for identities.
// Implementations must enforce unique email and wallet address at the store
// level and report violations as domain.ErrDuplicateEmail / domain.ErrDuplicateWallet.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByWallet(ctx context.Context, address string) (*domain.Identity, error)
	// Update replaces the mutable fields (name, email, wallet, role, profile).
	Update(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	// SetWallet binds address to the identity; an empty address removes the binding.
	SetWallet(ctx context.Context, id, address string) (*domain.Identity, error)
}
