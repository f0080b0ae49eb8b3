package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"roombooking/pkg/config"
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Booking_events"
)

var ErrStorage = errors.New("audit storage error")

// EventRepository is the append-only audit trail. Saving an event id that is
// already stored succeeds without writing, so redelivered messages are harmless.
type EventRepository interface {
	Save(ctx context.Context, event *model.BookingEvent) error
	ListByBooking(ctx context.Context, bookingID string) ([]*model.BookingEvent, error)
}

type mongoEventRepository struct {
	collection   *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongoEventRepository(cfg *config.Config) EventRepository {
	return &mongoEventRepository{
		collection:   cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (r *mongoEventRepository) Save(ctx context.Context, event *model.BookingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("%w: failed to save event %s: %v", ErrStorage, event.EventID, err)
	}
	return nil
}

func (r *mongoEventRepository) ListByBooking(ctx context.Context, bookingID string) ([]*model.BookingEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list events: %v", ErrStorage, err)
	}
	defer cursor.Close(ctx)

	var events []*model.BookingEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("%w: failed to decode events: %v", ErrStorage, err)
	}
	return events, nil
}

type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]model.BookingEvent
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[string]model.BookingEvent)}
}

func (r *MemoryEventRepository) Save(_ context.Context, event *model.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[event.EventID]; !ok {
		r.events[event.EventID] = *event
	}
	return nil
}

func (r *MemoryEventRepository) ListByBooking(_ context.Context, bookingID string) ([]*model.BookingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.BookingEvent
	for _, e := range r.events {
		if e.BookingID == bookingID {
			event := e
			out = append(out, &event)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (r *MemoryEventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
