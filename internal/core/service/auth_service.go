package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/gigmarket/identity/internal/core/credential"
	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

// SessionMinter is the part of the session issuer the auth flows need.
type SessionMinter interface {
	Issue(identity *domain.Identity, ttl time.Duration) (string, *domain.Session, error)
	IssueDemo(identity *domain.Identity, ttl time.Duration) (string, *domain.Session, error)
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	Burn(plaintext string)
}

// AuthDependencies are the collaborators of AuthService. Challenges, Demo and
// Audit are optional.
type AuthDependencies struct {
	Identities ports.IdentityResolver
	Sessions   SessionMinter
	Hasher     PasswordHasher
	Wallets    ports.WalletVerifier
	Challenges ports.ChallengeStore
	Demo       *DemoDirectory
	Audit      ports.AuditRecorder
	Clock      clockwork.Clock
}

// AuthOptions tune the auth flows.
type AuthOptions struct {
	TokenTTL         time.Duration
	RequireChallenge bool
	ChallengeTTL     time.Duration
	SigninDomain     string
}

const (
	defaultChallengeTTL = 5 * time.Minute
	defaultSigninDomain = "gigmarket"
)

// AuthService implements ports.AuthService and ports.SessionIdentityLoader.
type AuthService struct {
	identities ports.IdentityResolver
	sessions   SessionMinter
	hasher     PasswordHasher
	wallets    ports.WalletVerifier
	challenges ports.ChallengeStore
	demo       *DemoDirectory
	audit      ports.AuditRecorder
	clock      clockwork.Clock
	opts       AuthOptions
	log        zerolog.Logger
}

func NewAuthService(deps AuthDependencies, opts AuthOptions, log zerolog.Logger) *AuthService {
	if deps.Audit == nil {
		deps.Audit = noopRecorder{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = defaultChallengeTTL
	}
	if opts.SigninDomain == "" {
		opts.SigninDomain = defaultSigninDomain
	}
	return &AuthService{
		identities: deps.Identities,
		sessions:   deps.Sessions,
		hasher:     deps.Hasher,
		wallets:    deps.Wallets,
		challenges: deps.Challenges,
		demo:       deps.Demo,
		audit:      deps.Audit,
		clock:      deps.Clock,
		opts:       opts,
		log:        log,
	}
}

// Signup creates a password identity, optionally binding a wallet proved in
// the same request, and returns a session for it.
func (s *AuthService) Signup(ctx context.Context, in ports.PasswordSignupInput) (*domain.AuthResult, error) {
	if !in.Role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}
	if len(in.Password) > credential.MaxPasswordBytes {
		return nil, domain.NewValidationError("password", fmt.Sprintf("password must be at most %d bytes", credential.MaxPasswordBytes))
	}

	walletAddress := ""
	if in.Wallet != nil {
		if err := s.checkProof(ctx, *in.Wallet); err != nil {
			s.record(ctx, domain.AuthEvent{Kind: domain.EventSignup, Email: email, WalletAddress: in.Wallet.Address, Reason: "wallet proof rejected"})
			return nil, err
		}
		walletAddress = in.Wallet.Address
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.CreateFromPassword(ctx, ports.NewPasswordIdentity{
		Email:         email,
		PasswordHash:  hash,
		Name:          in.Name,
		Role:          in.Role,
		Profile:       domain.NewProfile(in.Role, in.Profile),
		WalletAddress: walletAddress,
	})
	if err != nil {
		s.record(ctx, domain.AuthEvent{Kind: domain.EventSignup, Email: email, Reason: err.Error()})
		return nil, err
	}
	if in.Wallet != nil {
		s.consumeChallenge(ctx, *in.Wallet)
	}

	result, err := s.issue(identity, true)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.AuthEvent{Kind: domain.EventSignup, SubjectID: identity.ID, Email: identity.Email, WalletAddress: identity.WalletAddress, Success: true})
	return result, nil
}

// Login authenticates an email and password. Unknown emails, wallet-only
// identities and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if s.demo != nil {
		if identity, ok := s.demo.Authenticate(email, password); ok {
			token, sess, err := s.sessions.IssueDemo(identity, s.opts.TokenTTL)
			if err != nil {
				return nil, err
			}
			s.log.Info().Str("role", string(identity.Role)).Msg("demo login")
			return &domain.AuthResult{Token: token, Session: sess, Identity: identity}, nil
		}
	}

	identity, err := s.identities.ResolveByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, err
		}
		s.hasher.Burn(password)
		s.record(ctx, domain.AuthEvent{Kind: domain.EventLogin, Email: email, Reason: "unknown email"})
		return nil, domain.ErrInvalidCredentials
	}

	if !identity.HasPassword() {
		s.hasher.Burn(password)
		s.record(ctx, domain.AuthEvent{Kind: domain.EventLogin, SubjectID: identity.ID, Email: email, Reason: "no password set"})
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, identity.PasswordHash) {
		s.record(ctx, domain.AuthEvent{Kind: domain.EventLogin, SubjectID: identity.ID, Email: email, Reason: "wrong password"})
		return nil, domain.ErrInvalidCredentials
	}

	result, err := s.issue(identity, false)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.AuthEvent{Kind: domain.EventLogin, SubjectID: identity.ID, Email: email, Success: true})
	return result, nil
}

// WalletChallenge issues a single-use sign-in message for address.
func (s *AuthService) WalletChallenge(ctx context.Context, address string) (*domain.WalletChallenge, error) {
	if !credential.IsWalletAddress(address) {
		return nil, domain.NewValidationError("address", "invalid wallet address")
	}
	if s.challenges == nil {
		return nil, errors.New("wallet challenges are not configured")
	}

	now := s.clock.Now().UTC()
	nonce := ksuid.New().String()
	wallet := domain.NormalizeWallet(address)
	ch := &domain.WalletChallenge{
		Address:   wallet,
		Nonce:     nonce,
		Message:   credential.BuildChallengeMessage(s.opts.SigninDomain, wallet, nonce, now),
		ExpiresAt: now.Add(s.opts.ChallengeTTL),
	}
	if err := s.challenges.Save(ctx, ch, s.opts.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}
	return ch, nil
}

// WalletLogin authenticates a wallet signature. A valid signature from an
// address without an identity yields *domain.WalletNotRegisteredError and
// leaves the challenge in place for the follow-up signup.
func (s *AuthService) WalletLogin(ctx context.Context, proof ports.WalletProof) (*domain.AuthResult, error) {
	if err := s.checkProof(ctx, proof); err != nil {
		s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletLogin, WalletAddress: proof.Address, Reason: err.Error()})
		return nil, err
	}
	wallet := domain.NormalizeWallet(proof.Address)

	identity, err := s.identities.ResolveByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, &domain.WalletNotRegisteredError{Address: wallet}
		}
		return nil, err
	}

	if err := s.takeChallenge(ctx, proof); err != nil {
		return nil, err
	}

	result, err := s.issue(identity, false)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletLogin, SubjectID: identity.ID, WalletAddress: wallet, Success: true})
	return result, nil
}

// WalletSignup creates a wallet identity. Role defaults to freelancer and
// name to the shortened address.
func (s *AuthService) WalletSignup(ctx context.Context, in ports.WalletSignupInput) (*domain.AuthResult, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleFreelancer
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if err := s.checkProof(ctx, in.Proof); err != nil {
		s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletSignup, WalletAddress: in.Proof.Address, Reason: err.Error()})
		return nil, err
	}

	identity, err := s.identities.CreateFromWallet(ctx, ports.NewWalletIdentity{
		Address: in.Proof.Address,
		Name:    in.Name,
		Role:    role,
		Profile: domain.NewProfile(role, in.Profile),
		Email:   in.Email,
	})
	if err != nil {
		s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletSignup, WalletAddress: in.Proof.Address, Reason: err.Error()})
		return nil, err
	}
	s.consumeChallenge(ctx, in.Proof)

	result, err := s.issue(identity, true)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletSignup, SubjectID: identity.ID, Email: identity.Email, WalletAddress: identity.WalletAddress, Success: true})
	return result, nil
}

// LinkWallet binds a wallet proved by signature to an existing identity.
func (s *AuthService) LinkWallet(ctx context.Context, identityID string, proof ports.WalletProof) (*domain.Identity, error) {
	if err := s.checkProof(ctx, proof); err != nil {
		s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletLinked, SubjectID: identityID, WalletAddress: proof.Address, Reason: err.Error()})
		return nil, err
	}
	identity, err := s.identities.LinkWallet(ctx, identityID, proof.Address)
	if err != nil {
		return nil, err
	}
	s.consumeChallenge(ctx, proof)
	s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletLinked, SubjectID: identity.ID, WalletAddress: identity.WalletAddress, Success: true})
	return identity, nil
}

func (s *AuthService) UnlinkWallet(ctx context.Context, identityID string) (*domain.Identity, error) {
	before, err := s.identities.ResolveByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	identity, err := s.identities.UnlinkWallet(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if before.WalletAddress != "" {
		s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletRemoved, SubjectID: identity.ID, WalletAddress: before.WalletAddress, Success: true})
	}
	return identity, nil
}

// UpdateProfile applies update. A wallet in the update must either be the one
// already linked or come with a signature proving control of it.
func (s *AuthService) UpdateProfile(ctx context.Context, identityID string, update ports.ProfileUpdate, wallet *ports.WalletProof) (*domain.Identity, error) {
	var linking *ports.WalletProof
	if wallet != nil {
		current, err := s.identities.ResolveByID(ctx, identityID)
		if err != nil {
			return nil, err
		}
		if current.WalletAddress != domain.NormalizeWallet(wallet.Address) {
			if wallet.Signature == "" || wallet.Message == "" {
				return nil, domain.NewValidationError("walletAddress", "a signature is required to link a wallet")
			}
			if err := s.checkProof(ctx, *wallet); err != nil {
				s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletLinked, SubjectID: identityID, WalletAddress: wallet.Address, Reason: err.Error()})
				return nil, err
			}
			address := wallet.Address
			update.WalletAddress = &address
			linking = wallet
		}
	}

	identity, err := s.identities.UpdateProfile(ctx, identityID, update)
	if err != nil {
		return nil, err
	}
	if linking != nil {
		s.consumeChallenge(ctx, *linking)
		s.record(ctx, domain.AuthEvent{Kind: domain.EventWalletLinked, SubjectID: identity.ID, WalletAddress: identity.WalletAddress, Success: true})
	}
	s.record(ctx, domain.AuthEvent{Kind: domain.EventProfileUpdate, SubjectID: identity.ID, Email: identity.Email, Success: true})
	return identity, nil
}

// LoadIdentity resolves the identity behind a verified session. Demo sessions
// resolve only against the demo directory.
func (s *AuthService) LoadIdentity(ctx context.Context, sess *domain.Session) (*domain.Identity, error) {
	if sess.Demo {
		if s.demo == nil {
			return nil, domain.ErrIdentityNotFound
		}
		identity, ok := s.demo.Lookup(sess.SubjectID)
		if !ok {
			return nil, domain.ErrIdentityNotFound
		}
		return identity, nil
	}
	return s.identities.ResolveByID(ctx, sess.SubjectID)
}

// checkProof verifies the signature and, when challenges are required, that
// the signed message is the live challenge for the address.
func (s *AuthService) checkProof(ctx context.Context, proof ports.WalletProof) error {
	if !credential.IsWalletAddress(proof.Address) {
		return domain.ErrInvalidCredentials
	}
	if !s.wallets.VerifyWalletSignature(ctx, proof.Address, proof.Signature, proof.Message) {
		return domain.ErrInvalidCredentials
	}
	if !s.opts.RequireChallenge {
		return nil
	}
	if s.challenges == nil {
		return domain.ErrChallengeInvalid
	}
	ok, err := s.challenges.Peek(ctx, domain.NormalizeWallet(proof.Address), proof.Message)
	if err != nil {
		return fmt.Errorf("check challenge: %w", err)
	}
	if !ok {
		return domain.ErrChallengeInvalid
	}
	return nil
}

// takeChallenge consumes the challenge and fails when another request got to
// it first.
func (s *AuthService) takeChallenge(ctx context.Context, proof ports.WalletProof) error {
	if !s.opts.RequireChallenge || s.challenges == nil {
		return nil
	}
	return s.challenges.Consume(ctx, domain.NormalizeWallet(proof.Address), proof.Message)
}

// consumeChallenge is takeChallenge after the identity write already happened.
func (s *AuthService) consumeChallenge(ctx context.Context, proof ports.WalletProof) {
	if err := s.takeChallenge(ctx, proof); err != nil {
		s.log.Warn().Err(err).Str("wallet", proof.Address).Msg("challenge not consumed")
	}
}

func (s *AuthService) issue(identity *domain.Identity, created bool) (*domain.AuthResult, error) {
	token, sess, err := s.sessions.Issue(identity, s.opts.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: token, Session: sess, Identity: identity, Created: created}, nil
}

func (s *AuthService) record(ctx context.Context, ev domain.AuthEvent) {
	ev.WalletAddress = domain.NormalizeWallet(ev.WalletAddress)
	ev.RequestID = domain.RequestIDFrom(ctx)
	ev.At = s.clock.Now().UTC()
	s.audit.Record(ev)
}

type noopRecorder struct{}

func (noopRecorder) Record(domain.AuthEvent) {}
