package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	bookingserrors "roombooking/internal/bookings/errors"
	"roombooking/internal/bookings/events"
	"roombooking/internal/bookings/repository"
	"roombooking/internal/bookings/validator"
	"roombooking/pkg/config"
	apperrors "roombooking/pkg/errors"
	"roombooking/pkg/logger"
	"roombooking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubRooms map[string]model.RoomStatus

func (s stubRooms) GetStatus(_ context.Context, roomID string) (model.RoomStatus, error) {
	status, ok := s[roomID]
	if !ok {
		return "", model.ErrRoomNotFound
	}
	return status, nil
}

var (
	admin    = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	student  = model.Actor{ID: "student-1", Role: model.RoleStudent}
	lecturer = model.Actor{ID: "lecturer-1", Role: model.RoleLecturer}
	day      = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
)

func at(hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

type fixture struct {
	svc      BookingService
	repo     *repository.MemoryBookingRepository
	locks    *repository.MemoryResourceLockRepository
	rooms    stubRooms
	recorder *events.Recorder
	room     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.New(logger.Config{Output: io.Discard, Level: logger.ERROR})
	cfg := &config.Config{
		Log:              log,
		WriteTimeout:     time.Second,
		LockTTL:          5 * time.Second,
		LockWaitTimeout:  2 * time.Second,
		LockPollInterval: 2 * time.Millisecond,
	}

	f := &fixture{
		repo:     repository.NewMemoryBookingRepository(),
		locks:    repository.NewMemoryResourceLockRepository(),
		rooms:    stubRooms{},
		recorder: events.NewRecorder(256),
		room:     primitive.NewObjectID().Hex(),
	}
	f.rooms[f.room] = model.RoomAvailable
	f.svc = NewBookingService(f.repo, f.locks, f.rooms, f.recorder, validator.NewBookingValidator(log), cfg)
	return f
}

func (f *fixture) serviceWith(repo repository.BookingRepository, locks repository.ResourceLockRepository, cfg *config.Config) BookingService {
	return NewBookingService(repo, locks, f.rooms, f.recorder, validator.NewBookingValidator(cfg.Log), cfg)
}

func (f *fixture) create(t *testing.T, actor model.Actor, start, end time.Time) *model.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), &model.CreateBookingRequest{
		ResourceID: f.room,
		StartTime:  start,
		EndTime:    end,
	}, actor)
	require.NoError(t, err)
	return b
}

func (f *fixture) status(t *testing.T, id string) model.BookingStatus {
	t.Helper()
	b, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func TestScenarioA_CreateThenApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.create(t, student, at(9), at(11))
	assert.Equal(t, model.BookingPending, b1.Status)
	assert.Equal(t, student.ID, b1.RequesterID)

	result, err := f.svc.Approve(ctx, b1.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, result.Outcome)
	assert.Equal(t, model.BookingApproved, result.Booking.Status)
	assert.Equal(t, admin.ID, result.Booking.DecidedBy)
	assert.NotNil(t, result.Booking.DecidedAt)
	assert.Nil(t, result.ConflictsWith)
	assert.Equal(t, b1.Version+1, result.Booking.Version)
}

func TestScenarioB_OverlapLosesAtApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.create(t, student, at(9), at(11))
	_, err := f.svc.Approve(ctx, b1.ID, admin)
	require.NoError(t, err)

	b2 := f.create(t, lecturer, at(10), at(12))
	assert.Equal(t, model.BookingPending, b2.Status)

	result, err := f.svc.Approve(ctx, b2.ID, admin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bookingserrors.ErrSlotConflict))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSlotConflict))
	require.NotNil(t, result)
	assert.Equal(t, model.ApprovalConflicted, result.Outcome)
	assert.Equal(t, b1.ID, result.ConflictsWith.ID)
	assert.Equal(t, model.BookingPending, f.status(t, b2.ID))
}

func TestScenarioC_AdjacentBookingApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.create(t, student, at(9), at(11))
	_, err := f.svc.Approve(ctx, b1.ID, admin)
	require.NoError(t, err)

	b3 := f.create(t, student, at(11), at(12))
	result, err := f.svc.Approve(ctx, b3.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, result.Booking.Status)
}

func TestScenarioD_OwnerCancelsThenApproveFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, student, at(9), at(10))
	canceled, err := f.svc.Cancel(ctx, b.ID, student)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCanceled, canceled.Status)
	assert.NotNil(t, canceled.CanceledAt)

	_, err = f.svc.Approve(ctx, b.ID, admin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidTransition))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestScenarioE_NonAdminCannotApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, student, at(9), at(10))
	for _, actor := range []model.Actor{student, lecturer} {
		_, err := f.svc.Approve(ctx, b.ID, actor)
		require.Error(t, err)
		assert.True(t, errors.Is(err, bookingserrors.ErrUnauthorized))
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	}
	assert.Equal(t, model.BookingPending, f.status(t, b.ID))
}

func TestApprove_ConcurrentOverlappingOnlyOneWins(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()

		b2 := f.create(t, student, at(10), at(12))
		b4 := f.create(t, lecturer, at(11), at(13))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, id := range []string{b2.ID, b4.ID} {
			wg.Add(1)
			go func(j int, id string) {
				defer wg.Done()
				_, errs[j] = f.svc.Approve(ctx, id, admin)
			}(j, id)
		}
		wg.Wait()

		approved := 0
		for _, b := range f.repo.All() {
			if b.Status == model.BookingApproved {
				approved++
			}
		}
		require.Equal(t, 1, approved)

		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
				assert.True(t, errors.Is(err, bookingserrors.ErrSlotConflict))
			}
		}
		require.Equal(t, 1, failed)
	}
}

func TestApprove_ConcurrentAcrossResourcesAllSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		room := primitive.NewObjectID().Hex()
		f.rooms[room] = model.RoomAvailable
		b, err := f.svc.Create(ctx, &model.CreateBookingRequest{ResourceID: room, StartTime: at(9), EndTime: at(10)}, student)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, id, admin)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()
}

func TestApprove_LockHeldTimesOut(t *testing.T) {
	f := newFixture(t)
	svc := f.svc.(*bookingService)
	svc.cfg.LockWaitTimeout = 20 * time.Millisecond

	b := f.create(t, student, at(9), at(10))
	ok, err := f.locks.TryAcquire(context.Background(), f.room, "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Approve(context.Background(), b.ID, admin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bookingserrors.ErrLockTimeout))
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, model.BookingPending, f.status(t, b.ID))
}

func TestApprove_ReleasesLock(t *testing.T) {
	f := newFixture(t)

	b := f.create(t, student, at(9), at(10))
	_, err := f.svc.Approve(context.Background(), b.ID, admin)
	require.NoError(t, err)

	ok, err := f.locks.TryAcquire(context.Background(), f.room, "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// stallingApprovedReads blocks the first approved-set read long enough for
// the caller's resource lock to expire.
type stallingApprovedReads struct {
	repository.BookingRepository
	once    sync.Once
	entered chan struct{}
	stall   time.Duration
}

func (r *stallingApprovedReads) FindApprovedByResource(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		time.Sleep(r.stall)
	}
	return r.BookingRepository.FindApprovedByResource(ctx, resourceID, window, excludeID)
}

func TestApprove_ExpiredLockCannotCommitStaleRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slow := &stallingApprovedReads{BookingRepository: f.repo, entered: make(chan struct{}), stall: 300 * time.Millisecond}
	cfg := *f.svc.(*bookingService).cfg
	cfg.LockTTL = 100 * time.Millisecond
	cfg.LockPollInterval = 5 * time.Millisecond
	svc := f.serviceWith(slow, f.locks, &cfg)

	b1 := f.create(t, student, at(9), at(11))
	b2 := f.create(t, lecturer, at(10), at(12))

	var errA error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, errA = svc.Approve(ctx, b1.ID, admin)
	}()

	<-slow.entered
	result, errB := svc.Approve(ctx, b2.ID, admin)
	<-done

	require.NoError(t, errB)
	assert.Equal(t, model.ApprovalApproved, result.Outcome)

	require.Error(t, errA)
	assert.True(t, errors.Is(errA, bookingserrors.ErrLockLost))
	assert.True(t, apperrors.IsRetryable(errA))
	assert.Equal(t, model.BookingPending, f.status(t, b1.ID))
	assertApprovedDisjoint(t, f.repo.All())
}

var errStorageDown = fmt.Errorf("%w: connection reset", bookingserrors.ErrStorage)

type faultyBookingRepo struct {
	repository.BookingRepository
	failFindByID     bool
	failFindApproved bool
	failUpdateStatus bool
	failUpdateRange  bool
	// failAfterWrite lets UpdateStatus write and then reports a failure, as
	// a lost commit acknowledgement would.
	failAfterWrite bool
}

func (r *faultyBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if r.failFindByID {
		return nil, errStorageDown
	}
	return r.BookingRepository.FindByID(ctx, id)
}

func (r *faultyBookingRepo) FindApprovedByResource(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error) {
	if r.failFindApproved {
		return nil, errStorageDown
	}
	return r.BookingRepository.FindApprovedByResource(ctx, resourceID, window, excludeID)
}

func (r *faultyBookingRepo) UpdateStatus(ctx context.Context, id string, expectedStatus model.BookingStatus, expectedVersion int64, change repository.StatusChange) (*model.Booking, error) {
	if r.failUpdateStatus {
		return nil, errStorageDown
	}
	b, err := r.BookingRepository.UpdateStatus(ctx, id, expectedStatus, expectedVersion, change)
	if err == nil && r.failAfterWrite {
		return nil, errStorageDown
	}
	return b, err
}

func (r *faultyBookingRepo) UpdateRange(ctx context.Context, id string, expectedVersion int64, tr model.TimeRange, at time.Time) (*model.Booking, error) {
	if r.failUpdateRange {
		return nil, errStorageDown
	}
	return r.BookingRepository.UpdateRange(ctx, id, expectedVersion, tr, at)
}

type faultyLocks struct {
	repository.ResourceLockRepository
	failFence bool
}

func (l *faultyLocks) Fence(ctx context.Context, resourceID, owner string, ttl time.Duration) error {
	if l.failFence {
		return errStorageDown
	}
	return l.ResourceLockRepository.Fence(ctx, resourceID, owner, ttl)
}

func TestStorageFailures_LeaveBookingUnchanged(t *testing.T) {
	approve := func(svc BookingService, id string) error {
		_, err := svc.Approve(context.Background(), id, admin)
		return err
	}
	cancel := func(svc BookingService, id string) error {
		_, err := svc.Cancel(context.Background(), id, student)
		return err
	}
	edit := func(svc BookingService, id string) error {
		_, err := svc.Edit(context.Background(), id, student, &model.EditBookingRequest{StartTime: at(14), EndTime: at(15)})
		return err
	}

	tests := []struct {
		name  string
		repo  faultyBookingRepo
		locks faultyLocks
		run   func(BookingService, string) error
	}{
		{name: "approve read fails", repo: faultyBookingRepo{failFindByID: true}, run: approve},
		{name: "approve approved set read fails", repo: faultyBookingRepo{failFindApproved: true}, run: approve},
		{name: "approve status write fails", repo: faultyBookingRepo{failUpdateStatus: true}, run: approve},
		{name: "approve commit fails after write", repo: faultyBookingRepo{failAfterWrite: true}, run: approve},
		{name: "approve lock fence fails", locks: faultyLocks{failFence: true}, run: approve},
		{name: "cancel status write fails", repo: faultyBookingRepo{failUpdateStatus: true}, run: cancel},
		{name: "edit range write fails", repo: faultyBookingRepo{failUpdateRange: true}, run: edit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.create(t, student, at(9), at(11))
			f.recorder.Drain()

			repo := tt.repo
			repo.BookingRepository = f.repo
			locks := tt.locks
			locks.ResourceLockRepository = f.locks
			svc := f.serviceWith(&repo, &locks, f.svc.(*bookingService).cfg)

			err := tt.run(svc, b.ID)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeStorage), "got %v", err)
			assert.True(t, apperrors.IsRetryable(err))

			stored, err := f.repo.FindByID(context.Background(), b.ID)
			require.NoError(t, err)
			assert.Equal(t, model.BookingPending, stored.Status)
			assert.Equal(t, b.Version, stored.Version)
			assert.True(t, stored.StartTime.Equal(b.StartTime))
			assert.True(t, stored.EndTime.Equal(b.EndTime))
			assert.Empty(t, f.recorder.Drain(), "no event for a failed write")

			ok, err := f.locks.TryAcquire(context.Background(), f.room, "next", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "lock released after failure")
		})
	}
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	maintenance := primitive.NewObjectID().Hex()
	f.rooms[maintenance] = model.RoomMaintenance

	tests := []struct {
		name  string
		req   *model.CreateBookingRequest
		actor model.Actor
		code  string
		cause error
	}{
		{
			name:  "end before start",
			req:   &model.CreateBookingRequest{ResourceID: f.room, StartTime: at(11), EndTime: at(9)},
			actor: student,
			code:  apperrors.CodeInvalidRange,
			cause: bookingserrors.ErrInvalidRange,
		},
		{
			name:  "empty range",
			req:   &model.CreateBookingRequest{ResourceID: f.room, StartTime: at(9), EndTime: at(9)},
			actor: student,
			code:  apperrors.CodeInvalidRange,
			cause: bookingserrors.ErrInvalidRange,
		},
		{
			name:  "unknown room",
			req:   &model.CreateBookingRequest{ResourceID: primitive.NewObjectID().Hex(), StartTime: at(9), EndTime: at(10)},
			actor: student,
			code:  apperrors.CodeNotFound,
		},
		{
			name:  "room in maintenance",
			req:   &model.CreateBookingRequest{ResourceID: maintenance, StartTime: at(9), EndTime: at(10)},
			actor: student,
			code:  apperrors.CodeResourceUnavailable,
			cause: bookingserrors.ErrResourceUnavailable,
		},
		{
			name:  "student books for someone else",
			req:   &model.CreateBookingRequest{ResourceID: f.room, RequesterID: "other", StartTime: at(9), EndTime: at(10)},
			actor: student,
			code:  apperrors.CodeForbidden,
			cause: bookingserrors.ErrUnauthorized,
		},
		{
			name:  "malformed resource id",
			req:   &model.CreateBookingRequest{ResourceID: "room-1", StartTime: at(9), EndTime: at(10)},
			actor: student,
			code:  apperrors.CodeValidation,
		},
		{
			name:  "unknown actor role",
			req:   &model.CreateBookingRequest{ResourceID: f.room, StartTime: at(9), EndTime: at(10)},
			actor: model.Actor{ID: "x", Role: "guest"},
			code:  apperrors.CodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.req, tt.actor)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			if tt.cause != nil {
				assert.True(t, errors.Is(err, tt.cause))
			}
		})
	}
	assert.Empty(t, f.repo.All())
}

func TestCreate_AdminBooksOnBehalf(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), &model.CreateBookingRequest{
		ResourceID:  f.room,
		RequesterID: student.ID,
		StartTime:   at(9),
		EndTime:     at(10),
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, student.ID, b.RequesterID)
}

func TestCreate_NeverChecksConflicts(t *testing.T) {
	f := newFixture(t)

	b1 := f.create(t, student, at(9), at(11))
	_, err := f.svc.Approve(context.Background(), b1.ID, admin)
	require.NoError(t, err)

	b2 := f.create(t, student, at(9), at(11))
	assert.Equal(t, model.BookingPending, b2.Status)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, student, at(9), at(10))

	_, err := f.svc.Reject(ctx, b.ID, student)
	assert.True(t, errors.Is(err, bookingserrors.ErrUnauthorized))

	rejected, err := f.svc.Reject(ctx, b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, rejected.Status)
	assert.Equal(t, admin.ID, rejected.DecidedBy)

	_, err = f.svc.Cancel(ctx, b.ID, student)
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidTransition))
}

func TestCancel_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, student, at(9), at(10))

	_, err := f.svc.Cancel(ctx, b.ID, lecturer)
	assert.True(t, errors.Is(err, bookingserrors.ErrUnauthorized))

	canceled, err := f.svc.Cancel(ctx, b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCanceled, canceled.Status)

	approvedOne := f.create(t, student, at(12), at(13))
	_, err = f.svc.Approve(ctx, approvedOne.ID, admin)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, approvedOne.ID, student)
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidTransition))
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, student, at(9), at(10))

	edited, err := f.svc.Edit(ctx, b.ID, student, &model.EditBookingRequest{StartTime: at(14), EndTime: at(16)})
	require.NoError(t, err)
	assert.True(t, edited.StartTime.Equal(at(14)))
	assert.True(t, edited.EndTime.Equal(at(16)))
	assert.Equal(t, model.BookingPending, edited.Status)
	assert.Equal(t, b.Version+1, edited.Version)

	_, err = f.svc.Edit(ctx, b.ID, lecturer, &model.EditBookingRequest{StartTime: at(14), EndTime: at(15)})
	assert.True(t, errors.Is(err, bookingserrors.ErrUnauthorized))

	_, err = f.svc.Edit(ctx, b.ID, student, &model.EditBookingRequest{StartTime: at(16), EndTime: at(14)})
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidRange))

	_, err = f.svc.Approve(ctx, b.ID, admin)
	require.NoError(t, err)
	_, err = f.svc.Edit(ctx, b.ID, student, &model.EditBookingRequest{StartTime: at(17), EndTime: at(18)})
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidTransition))
}

func TestGetByID_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = f.svc.GetByID(ctx, "not-an-id")
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidID))

	_, err = f.svc.GetByID(ctx, primitive.NewObjectID().Hex())
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := primitive.NewObjectID().Hex()
	f.rooms[other] = model.RoomAvailable

	b1 := f.create(t, student, at(9), at(10))
	f.create(t, lecturer, at(11), at(12))
	_, err := f.svc.Create(ctx, &model.CreateBookingRequest{ResourceID: other, StartTime: at(9), EndTime: at(10)}, student)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, b1.ID, admin)
	require.NoError(t, err)

	from, to := at(10), at(13)
	tests := []struct {
		name   string
		filter model.BookingFilter
		want   int64
	}{
		{name: "all", filter: model.BookingFilter{}, want: 3},
		{name: "by resource", filter: model.BookingFilter{ResourceID: f.room}, want: 2},
		{name: "by requester", filter: model.BookingFilter{RequesterID: student.ID}, want: 2},
		{name: "by status", filter: model.BookingFilter{Status: model.BookingApproved}, want: 1},
		{name: "by window", filter: model.BookingFilter{From: &from, To: &to}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings, total, err := f.svc.List(ctx, tt.filter, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, bookings, int(tt.want))
		})
	}

	page, total, err := f.svc.List(ctx, model.BookingFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)

	_, _, err = f.svc.List(ctx, model.BookingFilter{Status: "unknown"}, 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.create(t, student, at(9), at(11))

	avail, err := f.svc.CheckAvailability(ctx, f.room, at(10), at(12))
	require.NoError(t, err)
	assert.True(t, avail.Available, "pending bookings do not block")

	_, err = f.svc.Approve(ctx, b1.ID, admin)
	require.NoError(t, err)

	avail, err = f.svc.CheckAvailability(ctx, f.room, at(10), at(12))
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, b1.ID, avail.ConflictsWith.ID)

	avail, err = f.svc.CheckAvailability(ctx, f.room, at(11), at(12))
	require.NoError(t, err)
	assert.True(t, avail.Available)

	_, err = f.svc.CheckAvailability(ctx, f.room, at(12), at(11))
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidRange))
}

func TestCheckAvailability_FollowsRoomStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	avail, err := f.svc.CheckAvailability(ctx, f.room, at(9), at(10))
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, model.RoomAvailable, avail.RoomStatus)

	f.rooms[f.room] = model.RoomMaintenance
	avail, err = f.svc.CheckAvailability(ctx, f.room, at(9), at(10))
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, model.RoomMaintenance, avail.RoomStatus)
	assert.Nil(t, avail.ConflictsWith)

	_, err = f.svc.Create(ctx, &model.CreateBookingRequest{ResourceID: f.room, StartTime: at(9), EndTime: at(10)}, student)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeResourceUnavailable), "create agrees with availability")

	unknown := primitive.NewObjectID().Hex()
	_, err = f.svc.CheckAvailability(ctx, unknown, at(9), at(10))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestEvents_PublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, student, at(9), at(10))
	_, err := f.svc.Edit(ctx, b.ID, student, &model.EditBookingRequest{StartTime: at(10), EndTime: at(11)})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, b.ID, admin)
	require.NoError(t, err)

	other := f.create(t, student, at(10), at(11))
	_, err = f.svc.Approve(ctx, other.ID, admin)
	require.Error(t, err)
	_, err = f.svc.Reject(ctx, other.ID, admin)
	require.NoError(t, err)

	got := f.recorder.Drain()
	types := make([]model.BookingEventType, 0, len(got))
	for _, e := range got {
		types = append(types, e.Type)
	}
	assert.Equal(t, []model.BookingEventType{
		model.EventBookingCreated,
		model.EventBookingEdited,
		model.EventBookingApproved,
		model.EventBookingCreated,
		model.EventBookingRejected,
	}, types)
	assert.Equal(t, model.BookingPending, got[2].FromStatus)
	assert.Equal(t, model.BookingApproved, got[2].ToStatus)
	assert.Equal(t, admin.ID, got[2].ActorID)
}

func TestEvents_PublishFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	full := events.NewRecorder(0)
	svc := f.svc.(*bookingService)
	svc.publisher = full

	b := f.create(t, student, at(9), at(10))
	_, err := f.svc.Approve(context.Background(), b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, f.status(t, b.ID))
}

func TestFail_ClassifiesStaleWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc.(*bookingService)

	b := f.create(t, student, at(9), at(10))

	err := svc.fail(ctx, "edit", b.ID, bookingserrors.ErrStaleWrite)
	assert.True(t, errors.Is(err, bookingserrors.ErrStaleWrite))
	assert.True(t, apperrors.IsRetryable(err))

	_, err = f.svc.Cancel(ctx, b.ID, student)
	require.NoError(t, err)
	err = svc.fail(ctx, "edit", b.ID, bookingserrors.ErrStaleWrite)
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidTransition))
}

// No two approved bookings on one resource may overlap, whatever sequence of
// operations runs.
func TestRandomOperations_KeepApprovedBookingsDisjoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	second := primitive.NewObjectID().Hex()
	f.rooms[second] = model.RoomAvailable
	rooms := []string{f.room, second}
	actors := []model.Actor{student, lecturer, admin}

	var ids []string
	for i := 0; i < 400; i++ {
		actor := actors[rng.Intn(len(actors))]
		switch op := rng.Intn(5); {
		case op == 0 || len(ids) == 0:
			start := at(8).Add(time.Duration(rng.Intn(20)) * 30 * time.Minute)
			end := start.Add(time.Duration(1+rng.Intn(6)) * 30 * time.Minute)
			b, err := f.svc.Create(ctx, &model.CreateBookingRequest{
				ResourceID: rooms[rng.Intn(len(rooms))],
				StartTime:  start,
				EndTime:    end,
			}, actor)
			require.NoError(t, err)
			ids = append(ids, b.ID)
		case op == 1:
			_, _ = f.svc.Approve(ctx, ids[rng.Intn(len(ids))], admin)
		case op == 2:
			_, _ = f.svc.Cancel(ctx, ids[rng.Intn(len(ids))], actor)
		case op == 3:
			_, _ = f.svc.Reject(ctx, ids[rng.Intn(len(ids))], actor)
		default:
			start := at(8).Add(time.Duration(rng.Intn(20)) * 30 * time.Minute)
			_, _ = f.svc.Edit(ctx, ids[rng.Intn(len(ids))], actor, &model.EditBookingRequest{
				StartTime: start,
				EndTime:   start.Add(time.Hour),
			})
		}
		assertApprovedDisjoint(t, f.repo.All())
	}
}

func assertApprovedDisjoint(t *testing.T, bookings []*model.Booking) {
	t.Helper()
	for i, a := range bookings {
		if a.Status != model.BookingApproved {
			continue
		}
		for _, b := range bookings[i+1:] {
			if b.Status != model.BookingApproved || a.ResourceID != b.ResourceID {
				continue
			}
			require.False(t, a.Range().Overlaps(b.Range()), "approved %s and %s overlap", a.ID, b.ID)
		}
	}
}
