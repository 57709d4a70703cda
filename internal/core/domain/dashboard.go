package domain

import "time"

// Dashboard is a role-specific summary computed from the collaborator stores.
type Dashboard struct {
	Role        Role
	Stats       map[string]int64
	GeneratedAt time.Time
}
