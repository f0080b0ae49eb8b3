package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingserrors "roombooking/internal/bookings/errors"
	mongotx "roombooking/pkg/db/mongo"
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryBookingRepository keeps bookings in process. It backs
// STORAGE_BACKEND=memory and the service tests.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]*model.Booking),
	}
}

type txKey struct{}

// undoLog records the pre-transaction copy of every booking a transaction
// touched. A nil entry means the booking did not exist.
type undoLog map[string]*model.Booking

func clone(b *model.Booking) *model.Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.CanceledAt != nil {
		t := *b.CanceledAt
		c.CanceledAt = &t
	}
	if b.DecidedAt != nil {
		t := *b.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

func (m *MemoryBookingRepository) recordLocked(ctx context.Context, id string) {
	undo, ok := ctx.Value(txKey{}).(undoLog)
	if !ok {
		return
	}
	if _, seen := undo[id]; !seen {
		undo[id] = clone(m.bookings[id])
	}
}

func (m *MemoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking.ID = primitive.NewObjectID().Hex()
	m.recordLocked(ctx, booking.ID)
	m.bookings[booking.ID] = clone(booking)
	return nil
}

func (m *MemoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (m *MemoryBookingRepository) FindApprovedByResource(_ context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error) {
	if excludeID != "" {
		if _, err := objectID(excludeID); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Booking
	for _, b := range m.bookings {
		if b.ResourceID != resourceID || b.Status != model.BookingApproved || b.ID == excludeID {
			continue
		}
		if !window.IsZero() && !b.Range().Overlaps(window) {
			continue
		}
		out = append(out, clone(b))
	}
	sortByStart(out)
	return out, nil
}

func (m *MemoryBookingRepository) UpdateStatus(ctx context.Context, id string, expectedStatus model.BookingStatus, expectedVersion int64, change StatusChange) (*model.Booking, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.Status != expectedStatus || b.Version != expectedVersion {
		return nil, bookingserrors.ErrStaleWrite
	}

	m.recordLocked(ctx, id)
	b.Status = change.To
	b.UpdatedAt = change.At
	if change.DecidedBy != "" {
		b.DecidedBy = change.DecidedBy
	}
	if change.DecidedAt != nil {
		t := *change.DecidedAt
		b.DecidedAt = &t
	}
	if change.CanceledAt != nil {
		t := *change.CanceledAt
		b.CanceledAt = &t
	}
	b.Version++
	return clone(b), nil
}

func (m *MemoryBookingRepository) UpdateRange(ctx context.Context, id string, expectedVersion int64, r model.TimeRange, at time.Time) (*model.Booking, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.Status != model.BookingPending || b.Version != expectedVersion {
		return nil, bookingserrors.ErrStaleWrite
	}

	m.recordLocked(ctx, id)
	b.SetRange(r)
	b.UpdatedAt = at
	b.Version++
	return clone(b), nil
}

func (m *MemoryBookingRepository) List(_ context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.RLock()
	matched := m.matchLocked(filter)
	m.mu.RUnlock()

	sortByStart(matched)
	if offset >= int64(len(matched)) {
		return []*model.Booking{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryBookingRepository) Count(_ context.Context, filter model.BookingFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matchLocked(filter))), nil
}

func (m *MemoryBookingRepository) matchLocked(f model.BookingFilter) []*model.Booking {
	out := []*model.Booking{}
	for _, b := range m.bookings {
		if f.ResourceID != "" && b.ResourceID != f.ResourceID {
			continue
		}
		if f.RequesterID != "" && b.RequesterID != f.RequesterID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.To != nil && !b.StartTime.Before(*f.To) {
			continue
		}
		if f.From != nil && !b.EndTime.After(*f.From) {
			continue
		}
		out = append(out, clone(b))
	}
	return out
}

// ExecuteTransaction rolls back every write fn made when fn fails. Writes
// are visible to other callers before commit; isolation comes from the
// resource lock and the conditional writes, as with Mongo.
func (m *MemoryBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	undo := undoLog{}
	if err := fn(context.WithValue(ctx, txKey{}, undo)); err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		for id, prev := range undo {
			if prev == nil {
				delete(m.bookings, id)
				continue
			}
			m.bookings[id] = prev
		}
		return err
	}
	return nil
}

// All returns a snapshot of every stored booking.
func (m *MemoryBookingRepository) All() []*model.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, clone(b))
	}
	sortByStart(out)
	return out
}

func sortByStart(bookings []*model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].StartTime.Equal(bookings[j].StartTime) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].StartTime.Before(bookings[j].StartTime)
	})
}

// MemoryResourceLockRepository mirrors the Mongo lock collection semantics
// in process.
type MemoryResourceLockRepository struct {
	mu    sync.Mutex
	locks map[string]model.ResourceLock
	now   func() time.Time
}

func NewMemoryResourceLockRepository() *MemoryResourceLockRepository {
	return &MemoryResourceLockRepository{
		locks: make(map[string]model.ResourceLock),
		now:   time.Now,
	}
}

func (m *MemoryResourceLockRepository) TryAcquire(_ context.Context, resourceID, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := model.ResourceLockID(resourceID)
	now := m.now().UTC()
	if held, ok := m.locks[id]; ok && held.ExpiresAt.After(now) {
		return false, nil
	}
	m.locks[id] = model.ResourceLock{ID: id, Owner: owner, ExpiresAt: now.Add(ttl), CreatedAt: now}
	return true, nil
}

func (m *MemoryResourceLockRepository) Fence(_ context.Context, resourceID, owner string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := model.ResourceLockID(resourceID)
	now := m.now().UTC()
	held, ok := m.locks[id]
	if !ok || held.Owner != owner || !held.ExpiresAt.After(now) {
		return bookingserrors.ErrLockLost
	}
	held.ExpiresAt = now.Add(ttl)
	m.locks[id] = held
	return nil
}

func (m *MemoryResourceLockRepository) Release(_ context.Context, resourceID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := model.ResourceLockID(resourceID)
	if held, ok := m.locks[id]; ok && held.Owner == owner {
		delete(m.locks, id)
	}
	return nil
}
