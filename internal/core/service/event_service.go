package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

type eventService struct {
	eventRepo ports.EventRepository
	log       zerolog.Logger
}

// NewEventService returns an EventService that writes audit events to the store.
func NewEventService(eventRepo ports.EventRepository, log zerolog.Logger) ports.EventService {
	return &eventService{eventRepo: eventRepo, log: log}
}

// Process persists a single audit event.
func (s *eventService) Process(ctx context.Context, ev domain.AuthEvent) error {
	if ev.Kind == "" {
		return fmt.Errorf("process audit event: missing kind")
	}
	if ev.At.IsZero() {
		return fmt.Errorf("process audit event %s: missing timestamp", ev.Kind)
	}

	if err := s.eventRepo.InsertEvent(ctx, &ev); err != nil {
		return fmt.Errorf("process audit event %s: %w", ev.Kind, err)
	}

	logEv := s.log.Debug()
	if !ev.Success {
		logEv = s.log.Info()
	}
	logEv.
		Str("kind", string(ev.Kind)).
		Str("subject", ev.SubjectID).
		Str("request_id", ev.RequestID).
		Bool("success", ev.Success).
		Str("reason", ev.Reason).
		Msg("audit event recorded")
	return nil
}
