package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gigmarket/identity/internal/core/credential"
	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

// IdentityService implements ports.IdentityResolver.
//
// Uniqueness of email and wallet is checked before every write, but the
// pre-check alone races with concurrent signups; the repository's unique
// indexes are what actually hold the invariant.
type IdentityService struct {
	repo  ports.IdentityRepository
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewIdentityService builds the resolver. A nil clock means the real clock.
func NewIdentityService(repo ports.IdentityRepository, clock clockwork.Clock, log zerolog.Logger) *IdentityService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IdentityService{repo: repo, clock: clock, log: log}
}

func (s *IdentityService) ResolveByID(ctx context.Context, id string) (*domain.Identity, error) {
	if id == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return s.repo.FindByID(ctx, id)
}

func (s *IdentityService) ResolveByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return s.repo.FindByEmail(ctx, email)
}

// ResolveByWallet looks an address up case-insensitively.
func (s *IdentityService) ResolveByWallet(ctx context.Context, address string) (*domain.Identity, error) {
	if !credential.IsWalletAddress(address) {
		return nil, domain.ErrIdentityNotFound
	}
	return s.repo.FindByWallet(ctx, domain.NormalizeWallet(address))
}

// CreateFromPassword creates a password identity. An optional wallet address
// is bound in the same write.
func (s *IdentityService) CreateFromPassword(ctx context.Context, in ports.NewPasswordIdentity) (*domain.Identity, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}
	if in.PasswordHash == "" {
		return nil, domain.NewValidationError("password", "password is required")
	}
	profile, err := profileFor(in.Role, in.Profile)
	if err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	wallet := ""
	if in.WalletAddress != "" {
		if !credential.IsWalletAddress(in.WalletAddress) {
			return nil, domain.NewValidationError("walletAddress", "invalid wallet address")
		}
		wallet = domain.NormalizeWallet(in.WalletAddress)
		if err := s.ensureWalletFree(ctx, wallet); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	created, err := s.repo.Create(ctx, &domain.Identity{
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		WalletAddress: wallet,
		PasswordHash:  in.PasswordHash,
		Role:          in.Role,
		Profile:       profile,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("identity_id", created.ID).Str("role", string(created.Role)).Msg("password identity created")
	return created, nil
}

// CreateFromWallet creates a wallet identity, optionally with an email.
func (s *IdentityService) CreateFromWallet(ctx context.Context, in ports.NewWalletIdentity) (*domain.Identity, error) {
	if !credential.IsWalletAddress(in.Address) {
		return nil, domain.NewValidationError("address", "invalid wallet address")
	}
	wallet := domain.NormalizeWallet(in.Address)
	profile, err := profileFor(in.Role, in.Profile)
	if err != nil {
		return nil, err
	}

	if err := s.ensureWalletFree(ctx, wallet); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(in.Email)
	if email != "" {
		if err := s.ensureEmailFree(ctx, email, ""); err != nil {
			return nil, err
		}
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = domain.ShortWallet(wallet)
	}

	now := s.clock.Now().UTC()
	created, err := s.repo.Create(ctx, &domain.Identity{
		Name:          name,
		Email:         email,
		WalletAddress: wallet,
		Role:          in.Role,
		Profile:       profile,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("identity_id", created.ID).Str("wallet", wallet).Msg("wallet identity created")
	return created, nil
}

// LinkWallet binds address to the identity. Linking an address the identity
// already owns is a no-op; an address owned by someone else is rejected.
func (s *IdentityService) LinkWallet(ctx context.Context, identityID, address string) (*domain.Identity, error) {
	if !credential.IsWalletAddress(address) {
		return nil, domain.NewValidationError("walletAddress", "invalid wallet address")
	}
	wallet := domain.NormalizeWallet(address)

	identity, err := s.ResolveByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.WalletAddress == wallet {
		return identity, nil
	}

	owner, err := s.repo.FindByWallet(ctx, wallet)
	switch {
	case err == nil && owner.ID != identity.ID:
		return nil, domain.ErrWalletAlreadyLinked
	case err == nil:
		return owner, nil
	case !errors.Is(err, domain.ErrIdentityNotFound):
		return nil, fmt.Errorf("link wallet: %w", err)
	}

	updated, err := s.repo.SetWallet(ctx, identity.ID, wallet)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateWallet) {
			return nil, domain.ErrWalletAlreadyLinked
		}
		return nil, err
	}

	s.log.Info().Str("identity_id", identity.ID).Str("wallet", wallet).Msg("wallet linked")
	return updated, nil
}

// UnlinkWallet removes the wallet binding. It succeeds silently when there is
// none, and refuses when the wallet is the identity's only credential.
func (s *IdentityService) UnlinkWallet(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := s.ResolveByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.WalletAddress == "" {
		return identity, nil
	}
	if identity.Email == "" {
		return nil, domain.ErrLastCredential
	}

	updated, err := s.repo.SetWallet(ctx, identity.ID, "")
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("identity_id", identity.ID).Msg("wallet unlinked")
	return updated, nil
}

// UpdateProfile merges update into the identity. Patch fields that do not
// belong to the identity's role are dropped. A role change replaces the
// profile with one built from the patch alone. Every field is validated
// before the single write, so a rejected update changes nothing.
func (s *IdentityService) UpdateProfile(ctx context.Context, identityID string, update ports.ProfileUpdate) (*domain.Identity, error) {
	identity, err := s.ResolveByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "name cannot be empty")
		}
		identity.Name = name
	}

	if update.Email != nil {
		email := domain.NormalizeEmail(*update.Email)
		if email == "" {
			return nil, domain.NewValidationError("email", "email cannot be empty")
		}
		if email != identity.Email {
			if err := s.ensureEmailFree(ctx, email, identity.ID); err != nil {
				return nil, err
			}
			identity.Email = email
		}
	}

	if update.WalletAddress != nil {
		wallet, err := s.walletForUpdate(ctx, identity, *update.WalletAddress)
		if err != nil {
			return nil, err
		}
		identity.WalletAddress = wallet
	}

	if update.Role != nil && *update.Role != identity.Role {
		if !update.Role.Valid() {
			return nil, domain.ErrInvalidRole
		}
		identity.Role = *update.Role
		identity.Profile = domain.NewProfile(identity.Role, update.Patch)
	} else {
		current := identity.Profile
		if current == nil || current.Role() != identity.Role {
			current = domain.EmptyProfile(identity.Role)
		}
		identity.Profile = domain.ApplyPatch(current, update.Patch)
	}

	identity.UpdatedAt = s.clock.Now().UTC()
	updated, err := s.repo.Update(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateWallet) {
			return nil, domain.ErrWalletAlreadyLinked
		}
		return nil, err
	}
	return updated, nil
}

// walletForUpdate checks that address may be bound to identity and returns
// it normalized.
func (s *IdentityService) walletForUpdate(ctx context.Context, identity *domain.Identity, address string) (string, error) {
	if !credential.IsWalletAddress(address) {
		return "", domain.NewValidationError("walletAddress", "invalid wallet address")
	}
	wallet := domain.NormalizeWallet(address)
	if wallet == identity.WalletAddress {
		return wallet, nil
	}
	owner, err := s.repo.FindByWallet(ctx, wallet)
	switch {
	case err == nil && owner.ID != identity.ID:
		return "", domain.ErrWalletAlreadyLinked
	case err != nil && !errors.Is(err, domain.ErrIdentityNotFound):
		return "", fmt.Errorf("check wallet: %w", err)
	}
	return wallet, nil
}

func (s *IdentityService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return domain.ErrDuplicateEmail
	case err == nil, errors.Is(err, domain.ErrIdentityNotFound):
		return nil
	default:
		return fmt.Errorf("check email: %w", err)
	}
}

func (s *IdentityService) ensureWalletFree(ctx context.Context, wallet string) error {
	_, err := s.repo.FindByWallet(ctx, wallet)
	switch {
	case err == nil:
		return domain.ErrDuplicateWallet
	case errors.Is(err, domain.ErrIdentityNotFound):
		return nil
	default:
		return fmt.Errorf("check wallet: %w", err)
	}
}

// profileFor validates role and returns a profile of that role.
func profileFor(role domain.Role, p domain.Profile) (domain.Profile, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if p == nil {
		return domain.EmptyProfile(role), nil
	}
	if p.Role() != role {
		return nil, domain.NewValidationError("profile", "profile does not match role")
	}
	return p, nil
}
