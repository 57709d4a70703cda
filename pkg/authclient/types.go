package authclient

import (
	"fmt"
	"time"
)

// Roles understood by the identity service.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
)

func validRole(r string) bool {
	return r == RoleClient || r == RoleFreelancer
}

type Profile struct {
	Skills          []string `json:"skills,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	HourlyRate      float64  `json:"hourlyRate,omitempty"`
	Location        string   `json:"location,omitempty"`
	CompanySize     string   `json:"companySize,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	CompanyLocation string   `json:"companyLocation,omitempty"`
}

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Role          string    `json:"role"`
	Profile       Profile   `json:"profile"`
	HasPassword   bool      `json:"hasPassword"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Dashboard is a role summary. Placeholder is set on the stand-in stored
// after a failed fetch.
type Dashboard struct {
	Role        string           `json:"role"`
	Stats       map[string]int64 `json:"stats"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Placeholder bool             `json:"placeholder,omitempty"`
}

type SignupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Profile  Profile `json:"profile"`
}

type ClientSignupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Profile  Profile `json:"profile"`
}

// WalletSignupRequest holds the optional account details of a wallet signup;
// the address and signature come from the WalletProvider.
type WalletSignupRequest struct {
	Name    string  `json:"name,omitempty"`
	Email   string  `json:"email,omitempty"`
	Role    string  `json:"role,omitempty"`
	Profile Profile `json:"profile"`
}

// ProfileUpdate is a PATCH body; nil fields are left unchanged.
//
// WalletAddress binds another wallet and needs WalletData signed by it over a
// fresh challenge. LinkWallet builds both from the WalletProvider.
type ProfileUpdate struct {
	Name          *string       `json:"name,omitempty"`
	Email         *string       `json:"email,omitempty"`
	WalletAddress *string       `json:"walletAddress,omitempty"`
	WalletData    *WalletData   `json:"walletData,omitempty"`
	Role          *string       `json:"role,omitempty"`
	Profile       *ProfilePatch `json:"profile,omitempty"`
}

// ProfilePatch sets the profile fields that are non-nil. A pointer to the
// zero value clears the field, e.g. an empty bio or an hourly rate of 0.
type ProfilePatch struct {
	Skills          *[]string `json:"skills,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	HourlyRate      *float64  `json:"hourlyRate,omitempty"`
	Location        *string   `json:"location,omitempty"`
	CompanySize     *string   `json:"companySize,omitempty"`
	Industry        *string   `json:"industry,omitempty"`
	CompanyLocation *string   `json:"companyLocation,omitempty"`
}

// WalletData proves control of the wallet named in a ProfileUpdate.
type WalletData struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// APIError is a non-2xx answer of the identity service.
type APIError struct {
	Status            int          `json:"-"`
	Message           string       `json:"error"`
	Details           []FieldError `json:"details,omitempty"`
	WalletAddress     string       `json:"walletAddress,omitempty"`
	NeedsRegistration bool         `json:"needsRegistration,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity api: %d %s", e.Status, e.Message)
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type userEnvelope struct {
	User User `json:"user"`
}

type challenge struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

type walletProof struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}
