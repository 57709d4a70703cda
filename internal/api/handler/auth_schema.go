package handler

import "time"

// errorResponse documents the error envelope rendered by the API error handler.
type errorResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

type fieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// walletNotRegisteredResponse documents the 404 of POST /auth/wallet.
type walletNotRegisteredResponse struct {
	Error             string `json:"error"`
	WalletAddress     string `json:"walletAddress"`
	NeedsRegistration bool   `json:"needsRegistration"`
}

// --- Request types ---

type profileRequest struct {
	Skills          *[]string `json:"skills"          validate:"omitempty,max=50,dive,min=1,max=64"`
	Bio             *string   `json:"bio"             validate:"omitempty,max=2000"`
	HourlyRate      *float64  `json:"hourlyRate"      validate:"omitempty,gte=0"`
	Location        *string   `json:"location"        validate:"omitempty,max=120"`
	CompanySize     *string   `json:"companySize"     validate:"omitempty,max=40"`
	Industry        *string   `json:"industry"        validate:"omitempty,max=120"`
	CompanyLocation *string   `json:"companyLocation" validate:"omitempty,max=120"`
}

type walletProofRequest struct {
	Address   string `json:"address"   validate:"required,wallet"`
	Signature string `json:"signature" validate:"required,max=20000"`
	Message   string `json:"message"   validate:"required,max=2048"`
}

type signupRequest struct {
	Email      string              `json:"email"      validate:"required,email,max=254"`
	Password   string              `json:"password"   validate:"required,password"`
	Name       string              `json:"name"       validate:"required,max=120"`
	Role       string              `json:"role"       validate:"required,oneof=client freelancer"`
	Profile    profileRequest      `json:"profile"`
	WalletData *walletProofRequest `json:"walletData"`
}

type clientSignupRequest struct {
	Email    string         `json:"email"    validate:"required,email,max=254"`
	Password string         `json:"password" validate:"required,password"`
	Name     string         `json:"name"     validate:"required,max=120"`
	Profile  profileRequest `json:"profile"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type walletSignupRequest struct {
	Address   string         `json:"address"   validate:"required,wallet"`
	Signature string         `json:"signature" validate:"required,max=20000"`
	Message   string         `json:"message"   validate:"required,max=2048"`
	Name      string         `json:"name"      validate:"omitempty,max=120"`
	Email     string         `json:"email"     validate:"omitempty,email,max=254"`
	Role      string         `json:"role"      validate:"omitempty,oneof=client freelancer"`
	Profile   profileRequest `json:"profile"`
}

type walletSignatureRequest struct {
	Signature string `json:"signature" validate:"required,max=20000"`
	Message   string `json:"message"   validate:"required,max=2048"`
}

type updateProfileRequest struct {
	Name          *string                 `json:"name"          validate:"omitempty,max=120"`
	Email         *string                 `json:"email"         validate:"omitempty,email,max=254"`
	WalletAddress *string                 `json:"walletAddress" validate:"omitempty,wallet"`
	WalletData    *walletSignatureRequest `json:"walletData"`
	Role          *string                 `json:"role"          validate:"omitempty,oneof=client freelancer"`
	Profile       profileRequest          `json:"profile"`
}

// --- Response types ---

type profileResponse struct {
	Skills          []string `json:"skills,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	HourlyRate      float64  `json:"hourlyRate,omitempty"`
	Location        string   `json:"location,omitempty"`
	CompanySize     string   `json:"companySize,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	CompanyLocation string   `json:"companyLocation,omitempty"`
}

type userResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	WalletAddress string          `json:"walletAddress,omitempty"`
	Role          string          `json:"role"`
	Profile       profileResponse `json:"profile"`
	HasPassword   bool            `json:"hasPassword"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type userEnvelope struct {
	User userResponse `json:"user"`
}

type challengeResponse struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type dashboardResponse struct {
	Role        string           `json:"role"`
	Stats       map[string]int64 `json:"stats"`
	GeneratedAt time.Time        `json:"generatedAt"`
}
