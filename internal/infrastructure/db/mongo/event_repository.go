package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

const collectionAuthEvents = "auth_events"

// EventRepository implements ports.EventRepository using MongoDB.
type EventRepository struct {
	db *mongo.Database
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *mongo.Database) ports.EventRepository {
	return &EventRepository{db: db}
}

// InsertEvent appends an audit event to the auth_events collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := r.db.Collection(collectionAuthEvents).InsertOne(ctx, eventDocument(event))
	return err
}

func eventDocument(event *domain.AuthEvent) bson.M {
	doc := bson.M{
		"kind":         string(event.Kind),
		"success":      event.Success,
		"at":           event.At.UTC(),
		"processed_at": time.Now().UTC(),
	}
	optional := map[string]string{
		"subject_id":     event.SubjectID,
		"email":          event.Email,
		"wallet_address": event.WalletAddress,
		"reason":         event.Reason,
		"request_id":     event.RequestID,
	}
	for k, v := range optional {
		if v != "" {
			doc[k] = v
		}
	}
	return doc
}
