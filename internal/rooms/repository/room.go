package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	roomserrors "roombooking/internal/rooms/errors"
	"roombooking/pkg/config"
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Rooms"
)

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, error)
	Count(ctx context.Context, filter model.RoomFilter) (int64, error)
	UpdateStatus(ctx context.Context, id string, status model.RoomStatus, at time.Time) (*model.Room, error)
	// GetStatus is the only room read the booking core needs.
	GetStatus(ctx context.Context, id string) (model.RoomStatus, error)
}

type mongoRoomRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRoomRepository(cfg *config.Config) RoomRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, room)
	if err != nil {
		return fmt.Errorf("%w: failed to create room: %v", roomserrors.ErrStorage, err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		room.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var room model.Room
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, roomserrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to find room: %v", roomserrors.ErrStorage, err)
	}
	return &room, nil
}

func (r *mongoRoomRepository) GetStatus(ctx context.Context, id string) (model.RoomStatus, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return "", err
	}

	var doc struct {
		Status model.RoomStatus `bson:"status"`
	}
	opts := options.FindOne().SetProjection(bson.M{"status": 1})
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", roomserrors.ErrNotFound
		}
		return "", fmt.Errorf("%w: failed to read room status: %v", roomserrors.ErrStorage, err)
	}
	return doc.Status, nil
}

func (r *mongoRoomRepository) List(ctx context.Context, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "auditorium", Value: 1}, {Key: "floor", Value: 1}, {Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find rooms: %v", roomserrors.ErrStorage, err)
	}
	defer cursor.Close(ctx)

	rooms := []*model.Room{}
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("%w: failed to decode rooms: %v", roomserrors.ErrStorage, err)
	}
	return rooms, nil
}

func (r *mongoRoomRepository) Count(ctx context.Context, filter model.RoomFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count rooms: %v", roomserrors.ErrStorage, err)
	}
	return count, nil
}

func (r *mongoRoomRepository) UpdateStatus(ctx context.Context, id string, status model.RoomStatus, at time.Time) (*model.Room, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{"status": status, "updated_at": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room model.Room
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, roomserrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to update room status: %v", roomserrors.ErrStorage, err)
	}
	return &room, nil
}

func buildFilter(f model.RoomFilter) bson.M {
	filter := bson.M{}
	if f.Auditorium != "" {
		filter["auditorium"] = f.Auditorium
	}
	if f.Floor != nil {
		filter["floor"] = *f.Floor
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}
