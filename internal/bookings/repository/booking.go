package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roombooking/internal/bookings/errors"
	"roombooking/pkg/config"
	mongotx "roombooking/pkg/db/mongo"
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// StatusChange is the set of fields a lifecycle transition writes besides
// the status itself.
type StatusChange struct {
	To         model.BookingStatus
	At         time.Time
	DecidedBy  string
	DecidedAt  *time.Time
	CanceledAt *time.Time
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindApprovedByResource(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error)
	// UpdateStatus applies change only if the stored booking still has
	// expectedStatus and expectedVersion. A miss returns ErrStaleWrite.
	UpdateStatus(ctx context.Context, id string, expectedStatus model.BookingStatus, expectedVersion int64, change StatusChange) (*model.Booking, error)
	// UpdateRange rewrites the interval of a pending booking at expectedVersion.
	UpdateRange(ctx context.Context, id string, expectedVersion int64, r model.TimeRange, at time.Time) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout leaves session contexts untouched; wrapping one would detach
// the operation from its transaction.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("%w: failed to create booking: %v", bookingserrors.ErrStorage, err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to find booking: %v", bookingserrors.ErrStorage, err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindApprovedByResource(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter, err := approvedFilter(resourceID, window, excludeID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	return r.find(ctx, filter, opts)
}

// approvedFilter matches approved bookings of a resource that intersect
// window. A zero window matches all of them.
func approvedFilter(resourceID string, window model.TimeRange, excludeID string) (bson.M, error) {
	filter := bson.M{
		"resource_id": resourceID,
		"status":      model.BookingApproved,
	}
	if !window.IsZero() {
		filter["start_time"] = bson.M{"$lt": window.End()}
		filter["end_time"] = bson.M{"$gt": window.Start()}
	}
	if excludeID != "" {
		oid, err := objectID(excludeID)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$ne": oid}
	}
	return filter, nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, expectedStatus model.BookingStatus, expectedVersion int64, change StatusChange) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.DecidedBy != "" {
		set["decided_by"] = change.DecidedBy
	}
	if change.DecidedAt != nil {
		set["decided_at"] = *change.DecidedAt
	}
	if change.CanceledAt != nil {
		set["canceled_at"] = *change.CanceledAt
	}

	filter := bson.M{"_id": oid, "status": expectedStatus, "version": expectedVersion}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	return r.conditionalUpdate(ctx, filter, update)
}

func (r *mongoBookingRepository) UpdateRange(ctx context.Context, id string, expectedVersion int64, tr model.TimeRange, at time.Time) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "status": model.BookingPending, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"start_time": tr.Start(),
			"end_time":   tr.End(),
			"updated_at": at,
		},
		"$inc": bson.M{"version": 1},
	}
	return r.conditionalUpdate(ctx, filter, update)
}

func (r *mongoBookingRepository) conditionalUpdate(ctx context.Context, filter, update bson.M) (*model.Booking, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStaleWrite
		}
		return nil, fmt.Errorf("%w: failed to update booking: %v", bookingserrors.ErrStorage, err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, buildSearchFilter(filter), opts)
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildSearchFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count bookings: %v", bookingserrors.ErrStorage, err)
	}
	return count, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find bookings: %v", bookingserrors.ErrStorage, err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bookings: %v", bookingserrors.ErrStorage, err)
	}
	return bookings, nil
}

func buildSearchFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}
	if f.ResourceID != "" {
		filter["resource_id"] = f.ResourceID
	}
	if f.RequesterID != "" {
		filter["requester_id"] = f.RequesterID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.To != nil {
		filter["start_time"] = bson.M{"$lt": *f.To}
	}
	if f.From != nil {
		filter["end_time"] = bson.M{"$gt": *f.From}
	}
	return filter
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
