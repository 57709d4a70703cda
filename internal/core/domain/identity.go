package domain

import (
	"strings"
	"time"
)

// Role is the permission group an identity belongs to.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleFreelancer
}

// Identity models one principal. At least one of Email and WalletAddress is set.
type Identity struct {
	ID            string
	Name          string
	Email         string
	WalletAddress string
	PasswordHash  string
	Role          Role
	Profile       Profile
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether the identity can log in with a password.
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeWallet lower-cases a hex address and makes sure it carries the 0x prefix.
// It does not validate the address; see credential.IsWalletAddress.
func NormalizeWallet(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// ShortWallet renders 0x1234...abcd, used as a display name for wallet-only accounts.
func ShortWallet(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
