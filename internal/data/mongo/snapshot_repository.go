// Package mongo stores the balance validator's snapshot history in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/viban-reconciler/internal/domain/snapshot"
)

const (
	// SnapshotCollectionName is the name of the balance snapshot collection in MongoDB
	SnapshotCollectionName = "balance_snapshots"
)

// SnapshotRepository implements the snapshot.Repository interface for MongoDB.
// Documents are inserted once and never updated.
type SnapshotRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewSnapshotRepository creates a new MongoDB snapshot repository
func NewSnapshotRepository(logger *slog.Logger, db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the index backing latest and time range lookups
func (r *SnapshotRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(SnapshotCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "segregated_account_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		r.logger.Error("Failed to create balance snapshot index", "error", err)
		return fmt.Errorf("failed to create balance snapshot index: %w", err)
	}

	return nil
}

// Create appends a snapshot
func (r *SnapshotRepository) Create(ctx context.Context, s *snapshot.Snapshot) error {
	collection := r.db.Collection(SnapshotCollectionName)

	if _, err := collection.InsertOne(ctx, s); err != nil {
		r.logger.Error("Failed to create balance snapshot",
			"segregated_account_id", s.SegregatedAccountID,
			"error", err)
		return fmt.Errorf("failed to create balance snapshot: %w", err)
	}

	return nil
}

// GetLatest returns the newest snapshot of a grouping.
// Returns ErrSnapshotNotFound if the validator never ran for it.
func (r *SnapshotRepository) GetLatest(ctx context.Context, segregatedAccountID string) (*snapshot.Snapshot, error) {
	collection := r.db.Collection(SnapshotCollectionName)

	filter := bson.M{"segregated_account_id": segregatedAccountID}
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})

	var s snapshot.Snapshot
	err := collection.FindOne(ctx, filter, opts).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, snapshot.ErrSnapshotNotFound{SegregatedAccountID: segregatedAccountID}
		}
		r.logger.Error("Failed to get latest balance snapshot",
			"segregated_account_id", segregatedAccountID,
			"error", err)
		return nil, fmt.Errorf("failed to get latest balance snapshot: %w", err)
	}

	return &s, nil
}

// GetByTimeRange retrieves paginated snapshots of a grouping within the window, newest first.
func (r *SnapshotRepository) GetByTimeRange(ctx context.Context, segregatedAccountID string, startTime, endTime time.Time, limit, offset int) ([]*snapshot.Snapshot, error) {
	collection := r.db.Collection(SnapshotCollectionName)

	filter := bson.M{
		"segregated_account_id": segregatedAccountID,
		"created_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get balance snapshots by time range",
			"segregated_account_id", segregatedAccountID,
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to get balance snapshots by time range: %w", err)
	}
	defer cursor.Close(ctx)

	snapshots := []*snapshot.Snapshot{}
	if err := cursor.All(ctx, &snapshots); err != nil {
		r.logger.Error("Failed to decode balance snapshots",
			"segregated_account_id", segregatedAccountID,
			"error", err)
		return nil, fmt.Errorf("failed to decode balance snapshots: %w", err)
	}

	return snapshots, nil
}
