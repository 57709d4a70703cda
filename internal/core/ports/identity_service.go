package ports

import (
	"context"

	"github.com/gigmarket/identity/internal/core/domain"
)

// NewPasswordIdentity carries the inputs of a password signup.
type NewPasswordIdentity struct {
	Email         string
	PasswordHash  string
	Name          string
	Role          domain.Role
	Profile       domain.Profile
	WalletAddress string // optional, already verified by the caller
}

// NewWalletIdentity carries the inputs of a wallet signup.
type NewWalletIdentity struct {
	Address string
	Name    string
	Role    domain.Role
	Profile domain.Profile
	Email   string // optional
}

// ProfileUpdate carries a profile change. A Role different from the current one
// replaces the profile with a fresh one built from Patch. WalletAddress binds
// a wallet whose control the caller has already verified.
type ProfileUpdate struct {
	Name          *string
	Email         *string
	WalletAddress *string
	Role          *domain.Role
	Patch         domain.ProfilePatch
}

// IdentityLoader resolves a session subject back to its identity.
type IdentityLoader interface {
	ResolveByID(ctx context.Context, id string) (*domain.Identity, error)
}

// IdentityResolver looks up, creates and links identities.
type IdentityResolver interface {
	IdentityLoader
	ResolveByEmail(ctx context.Context, email string) (*domain.Identity, error)
	ResolveByWallet(ctx context.Context, address string) (*domain.Identity, error)
	CreateFromPassword(ctx context.Context, in NewPasswordIdentity) (*domain.Identity, error)
	CreateFromWallet(ctx context.Context, in NewWalletIdentity) (*domain.Identity, error)
	LinkWallet(ctx context.Context, identityID, address string) (*domain.Identity, error)
	UnlinkWallet(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, identityID string, update ProfileUpdate) (*domain.Identity, error)
}
