package ports

import (
	"context"

	"github.com/gigmarket/identity/internal/core/domain"
)

// EventRepository persists authentication audit events.
type EventRepository interface {
	// InsertEvent appends an event to the auth_events audit collection.
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}
