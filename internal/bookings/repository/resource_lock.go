package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "roombooking/internal/bookings/errors"
	"roombooking/pkg/config"
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Resource_locks"

// ResourceLockRepository stores advisory locks keyed by resource. A lock is
// held while its document exists and has not expired.
type ResourceLockRepository interface {
	// TryAcquire reports false without error when another owner holds a live lock.
	TryAcquire(ctx context.Context, resourceID, owner string, ttl time.Duration) (bool, error)
	// Fence extends a live lock held by owner to now+ttl and returns
	// ErrLockLost when owner no longer holds it. Called with a transaction
	// ctx, a concurrent takeover makes the transaction fail instead.
	Fence(ctx context.Context, resourceID, owner string, ttl time.Duration) error
	Release(ctx context.Context, resourceID, owner string) error
}

type mongoResourceLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoResourceLockRepository(cfg *config.Config) ResourceLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResourceLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoResourceLockRepository) TryAcquire(ctx context.Context, resourceID, owner string, ttl time.Duration) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	lock := &model.ResourceLock{
		ID:        model.ResourceLockID(resourceID),
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("%w: failed to insert resource lock: %v", bookingserrors.ErrStorage, err)
	}

	// The TTL monitor only runs once a minute, so reclaim expired locks here.
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": now}})
	if err != nil {
		return false, fmt.Errorf("%w: failed to reclaim resource lock: %v", bookingserrors.ErrStorage, err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}

	_, err = r.collection.InsertOne(ctx, lock)
	if err == nil {
		return true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: failed to insert resource lock: %v", bookingserrors.ErrStorage, err)
}

func (r *mongoResourceLockRepository) Fence(ctx context.Context, resourceID, owner string, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"_id":        model.ResourceLockID(resourceID),
		"owner":      owner,
		"expires_at": bson.M{"$gt": now},
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"expires_at": now.Add(ttl)}})
	if err != nil {
		return fmt.Errorf("%w: failed to fence resource lock: %v", bookingserrors.ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return bookingserrors.ErrLockLost
	}
	return nil
}

func (r *mongoResourceLockRepository) Release(ctx context.Context, resourceID, owner string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": model.ResourceLockID(resourceID), "owner": owner})
	if err != nil {
		return fmt.Errorf("%w: failed to release resource lock: %v", bookingserrors.ErrStorage, err)
	}
	return nil
}
