// Package session mints and verifies stateless HS256 session tokens.
//
// Tokens carry the identity's role at issuance time. Nothing is stored server
// side; validity is the signature plus the expiry claim.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/ksuid"

	"github.com/gigmarket/identity/internal/core/domain"
)

const (
	// MinSecretLength is the shortest signing secret accepted at startup.
	MinSecretLength = 32
	defaultTTL      = 24 * time.Hour
	defaultIssuer   = "gigmarket-identity"
)

var (
	ErrSecretMissing  = errors.New("session: signing secret is not configured")
	ErrSecretTooShort = fmt.Errorf("session: signing secret must be at least %d bytes", MinSecretLength)
)

// Config holds the issuer settings.
type Config struct {
	Secret     string
	Issuer     string
	DefaultTTL time.Duration
}

// Claims is the JWT payload.
type Claims struct {
	Email         string `json:"email,omitempty"`
	Role          string `json:"role"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Demo          bool   `json:"demo,omitempty"`
	jwt.RegisteredClaims
}

// Issuer implements ports.SessionIssuer.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewIssuer validates cfg and builds an Issuer. There is no fallback secret:
// callers are expected to abort startup on error.
func NewIssuer(cfg Config, clock clockwork.Clock) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretMissing
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Issuer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.DefaultTTL,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithIssuedAt(),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}, nil
}

// DefaultTTL returns the lifetime used when Issue is called with ttl <= 0.
func (i *Issuer) DefaultTTL() time.Duration {
	return i.ttl
}

// Issue signs a token for identity valid for ttl.
func (i *Issuer) Issue(identity *domain.Identity, ttl time.Duration) (string, *domain.Session, error) {
	return i.issue(identity, ttl, false)
}

// IssueDemo signs a token for a synthetic demo identity.
func (i *Issuer) IssueDemo(identity *domain.Identity, ttl time.Duration) (string, *domain.Session, error) {
	return i.issue(identity, ttl, true)
}

func (i *Issuer) issue(identity *domain.Identity, ttl time.Duration, demo bool) (string, *domain.Session, error) {
	if identity == nil || identity.ID == "" {
		return "", nil, errors.New("session: identity without id")
	}
	if ttl <= 0 {
		ttl = i.ttl
	}

	now := i.clock.Now().UTC().Truncate(time.Second)
	sess := &domain.Session{
		ID:            ksuid.New().String(),
		SubjectID:     identity.ID,
		Email:         identity.Email,
		WalletAddress: identity.WalletAddress,
		Role:          identity.Role,
		Demo:          demo,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
	if !sess.ExpiresAt.After(sess.IssuedAt) {
		return "", nil, errors.New("session: ttl shorter than token precision")
	}

	claims := Claims{
		Email:         sess.Email,
		Role:          string(sess.Role),
		WalletAddress: sess.WalletAddress,
		Demo:          demo,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    i.issuer,
			Subject:   sess.SubjectID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return signed, sess, nil
}

// Verify parses and validates token.
//
//	""                       → domain.ErrTokenMissing
//	expired (now >= exp)     → domain.ErrTokenExpired
//	anything else invalid    → domain.ErrTokenMalformed
func (i *Issuer) Verify(token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrTokenMissing
	}

	claims := &Claims{}
	parsed, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil || !domain.Role(claims.Role).Valid() {
		return nil, domain.ErrTokenMalformed
	}

	return &domain.Session{
		ID:            claims.ID,
		SubjectID:     claims.Subject,
		Email:         claims.Email,
		WalletAddress: claims.WalletAddress,
		Role:          domain.Role(claims.Role),
		Demo:          claims.Demo,
		IssuedAt:      claims.IssuedAt.Time.UTC(),
		ExpiresAt:     claims.ExpiresAt.Time.UTC(),
	}, nil
}
