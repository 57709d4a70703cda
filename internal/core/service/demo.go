package service

import (
	"crypto/subtle"
	"time"

	"github.com/gigmarket/identity/internal/core/domain"
)

// DemoAccount is a fixed credential pair served without touching the store.
type DemoAccount struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
}

// DemoDirectory resolves the configured demo accounts. It is only built when
// demo mode is enabled.
type DemoDirectory struct {
	byEmail map[string]DemoAccount
	byID    map[string]DemoAccount
	since   time.Time
}

// NewDemoDirectory keeps the accounts that have an email, a password and a
// valid role.
func NewDemoDirectory(accounts ...DemoAccount) *DemoDirectory {
	d := &DemoDirectory{
		byEmail: make(map[string]DemoAccount, len(accounts)),
		byID:    make(map[string]DemoAccount, len(accounts)),
		since:   time.Now().UTC(),
	}
	for _, a := range accounts {
		a.Email = domain.NormalizeEmail(a.Email)
		if a.Email == "" || a.Password == "" || !a.Role.Valid() {
			continue
		}
		d.byEmail[a.Email] = a
		d.byID[demoID(a.Role)] = a
	}
	return d
}

// Len returns the number of usable accounts.
func (d *DemoDirectory) Len() int {
	return len(d.byEmail)
}

// Authenticate returns the demo identity for email when password matches.
func (d *DemoDirectory) Authenticate(email, password string) (*domain.Identity, bool) {
	a, ok := d.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(a.Password), []byte(password)) != 1 {
		return nil, false
	}
	return d.identity(a), true
}

// Lookup returns the demo identity with the given id.
func (d *DemoDirectory) Lookup(id string) (*domain.Identity, bool) {
	a, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return d.identity(a), true
}

func (d *DemoDirectory) identity(a DemoAccount) *domain.Identity {
	return &domain.Identity{
		ID:        demoID(a.Role),
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Profile:   domain.EmptyProfile(a.Role),
		CreatedAt: d.since,
		UpdatedAt: d.since,
	}
}

func demoID(role domain.Role) string {
	return "demo-" + string(role)
}
