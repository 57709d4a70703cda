package domain

import "time"

// Session is the verified content of a session token. The role is the one the
// identity had at issuance; a later role change needs a new token.
type Session struct {
	ID            string
	SubjectID     string
	Email         string
	WalletAddress string
	Role          Role
	Demo          bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// AuthResult is what every successful signup or login returns.
type AuthResult struct {
	Token    string
	Session  *Session
	Identity *Identity
	Created  bool
}

// WalletChallenge is a single-use message a wallet must sign to authenticate.
type WalletChallenge struct {
	Address   string
	Nonce     string
	Message   string
	ExpiresAt time.Time
}
