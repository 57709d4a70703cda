package ports

import (
	"context"

	"github.com/gigmarket/identity/internal/core/domain"
)

// AuditRecorder accepts audit events. Record must not block the request path.
type AuditRecorder interface {
	Record(event domain.AuthEvent)
}

// EventService processes audit events taken off the dispatcher queues.
type EventService interface {
	Process(ctx context.Context, event domain.AuthEvent) error
}
