package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collections owned by the marketplace services; this service only counts them.
const (
	collectionJobs      = "jobs"
	collectionBids      = "bids"
	collectionContracts = "contracts"
)

// DashboardRepository implements ports.DashboardRepository.
type DashboardRepository struct {
	db *mongo.Database
}

func NewDashboardRepository(db *mongo.Database) *DashboardRepository {
	return &DashboardRepository{db: db}
}

type countQuery struct {
	stat       string
	collection string
	filter     bson.M
}

func (r *DashboardRepository) CountForClient(ctx context.Context, identityID string) (map[string]int64, error) {
	return r.count(ctx, []countQuery{
		{"jobsPosted", collectionJobs, bson.M{"client_id": identityID}},
		{"openJobs", collectionJobs, bson.M{"client_id": identityID, "status": "open"}},
		{"bidsReceived", collectionBids, bson.M{"client_id": identityID}},
		{"activeContracts", collectionContracts, bson.M{"client_id": identityID, "status": "active"}},
	})
}

func (r *DashboardRepository) CountForFreelancer(ctx context.Context, identityID string) (map[string]int64, error) {
	return r.count(ctx, []countQuery{
		{"bidsPlaced", collectionBids, bson.M{"freelancer_id": identityID}},
		{"bidsAccepted", collectionBids, bson.M{"freelancer_id": identityID, "status": "accepted"}},
		{"activeContracts", collectionContracts, bson.M{"freelancer_id": identityID, "status": "active"}},
		{"completedContracts", collectionContracts, bson.M{"freelancer_id": identityID, "status": "completed"}},
	})
}

func (r *DashboardRepository) count(ctx context.Context, queries []countQuery) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	stats := make(map[string]int64, len(queries))
	for _, q := range queries {
		n, err := r.db.Collection(q.collection).CountDocuments(ctx, q.filter)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", q.stat, err)
		}
		stats[q.stat] = n
	}
	return stats, nil
}
