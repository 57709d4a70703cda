package ports

import (
	"context"

	"github.com/gigmarket/identity/internal/core/domain"
)

// WalletProof is a signature over message made by the key behind Address.
type WalletProof struct {
	Address   string
	Signature string
	Message   string
}

// PasswordSignupInput is the validated body of a password signup.
type PasswordSignupInput struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
	Profile  domain.ProfilePatch
	Wallet   *WalletProof // optional
}

// WalletSignupInput is the validated body of a wallet signup.
type WalletSignupInput struct {
	Proof   WalletProof
	Name    string
	Email   string
	Role    domain.Role // defaults to freelancer
	Profile domain.ProfilePatch
}

// AuthService orchestrates credential checks, identity resolution and session issuance.
type AuthService interface {
	Signup(ctx context.Context, in PasswordSignupInput) (*domain.AuthResult, error)
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	WalletChallenge(ctx context.Context, address string) (*domain.WalletChallenge, error)
	WalletLogin(ctx context.Context, proof WalletProof) (*domain.AuthResult, error)
	WalletSignup(ctx context.Context, in WalletSignupInput) (*domain.AuthResult, error)
	LinkWallet(ctx context.Context, identityID string, proof WalletProof) (*domain.Identity, error)
	UnlinkWallet(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, identityID string, update ProfileUpdate, wallet *WalletProof) (*domain.Identity, error)
}
