package mongo

import (
	"context"
	"fmt"

	"roombooking/internal/migrations/mongo/validators"
	"roombooking/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	BookingsIndexes = []mongo.IndexModel{
		// Conflict checks: approved bookings of one resource by time.
		{Keys: bson.D{
			{Key: "resource_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "requester_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_time", Value: 1}}},
	}

	RoomsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "auditorium", Value: 1},
			{Key: "floor", Value: 1},
			{Key: "name", Value: 1},
		}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	// Expired locks are also reclaimed by the next acquirer; the TTL index
	// only keeps the collection from accumulating abandoned documents.
	ResourceLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	BookingEventsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
		{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
	}
)

type CollectionSpec struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() []CollectionSpec {
	return []CollectionSpec{
		{Name: "Bookings", Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		{Name: "Rooms", Indexes: RoomsIndexes, Validator: validators.RoomValidator},
		{Name: "Resource_locks", Indexes: ResourceLocksIndexes, Validator: validators.ResourceLockValidator},
		{Name: "Booking_events", Indexes: BookingEventsIndexes, Validator: validators.BookingEventValidator},
	}
}

// RunMigration creates every collection with its validator and indexes. It is
// safe to run repeatedly: existing collections get their validator updated.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, spec := range Collections() {
		if err := ensureCollection(ctx, db, spec.Name, spec.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", spec.Name, err)
		}
		if err := ensureIndexes(ctx, db, spec.Name, spec.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", spec.Name, err)
		}
	}

	log.Info("All migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
