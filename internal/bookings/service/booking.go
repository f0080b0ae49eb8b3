package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"roombooking/internal/bookings/conflict"
	bookingserrors "roombooking/internal/bookings/errors"
	"roombooking/internal/bookings/events"
	"roombooking/internal/bookings/lifecycle"
	"roombooking/internal/bookings/repository"
	"roombooking/internal/bookings/validator"
	"roombooking/pkg/config"
	apperrors "roombooking/pkg/errors"
	"roombooking/pkg/model"
	"roombooking/pkg/sanitizer"

	"github.com/google/uuid"
)

type BookingService interface {
	Create(ctx context.Context, req *model.CreateBookingRequest, actor model.Actor) (*model.Booking, error)
	Approve(ctx context.Context, id string, actor model.Actor) (*model.ApprovalResult, error)
	Reject(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	Cancel(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	Edit(ctx context.Context, id string, actor model.Actor, req *model.EditBookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	CheckAvailability(ctx context.Context, resourceID string, start, end time.Time) (*model.Availability, error)
}

// RoomStatusReader is the only thing bookings need to know about rooms. An
// unknown room is reported as model.ErrRoomNotFound.
type RoomStatusReader interface {
	GetStatus(ctx context.Context, roomID string) (model.RoomStatus, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.ResourceLockRepository
	rooms     RoomStatusReader
	checker   *conflict.Checker
	publisher events.Publisher
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.ResourceLockRepository,
	rooms RoomStatusReader,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		rooms:     rooms,
		checker:   conflict.NewChecker(repo),
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, req *model.CreateBookingRequest, actor model.Actor) (*model.Booking, error) {
	if err := s.validator.ValidateActor(actor); err != nil {
		return nil, apperrors.Unauthorized("Unknown actor")
	}
	req.ResourceID = sanitizer.SanitizeID(req.ResourceID)
	req.RequesterID = sanitizer.SanitizeID(req.RequesterID)
	if req.RequesterID == "" {
		req.RequesterID = actor.ID
	}
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "resource_id", req.ResourceID, "error", err)
		return nil, apperrors.Validation("Invalid booking input", map[string]any{"error": err.Error()})
	}
	if !actor.IsAdmin() && req.RequesterID != actor.ID {
		s.cfg.Log.Warn("Booking on behalf of another user refused",
			"actor_id", actor.ID,
			"requester_id", req.RequesterID,
		)
		return nil, apperrors.Forbidden("Only admins can book on behalf of another user").
			WithCause(bookingserrors.ErrUnauthorized)
	}

	tr, err := model.NewTimeRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, s.translate(err, req.ResourceID)
	}

	status, err := s.roomStatus(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if status != model.RoomAvailable {
		s.cfg.Log.Warn("Booking refused for unavailable room",
			"resource_id", req.ResourceID,
			"room_status", status,
		)
		return nil, apperrors.ResourceUnavailable("Room", req.ResourceID).WithCause(bookingserrors.ErrResourceUnavailable)
	}

	now := s.now().UTC()
	booking := &model.Booking{
		ResourceID:  req.ResourceID,
		RequesterID: req.RequesterID,
		Status:      model.BookingPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	booking.SetRange(tr)

	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "resource_id", booking.ResourceID, "error", err)
		return nil, s.translate(err, "")
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"resource_id", booking.ResourceID,
		"requester_id", booking.RequesterID,
		"range", tr.String(),
	)
	s.publish(ctx, model.NewBookingEvent(model.EventBookingCreated, booking, "", actor))
	return booking, nil
}

// Approve serializes on the resource lock, then re-reads the booking and runs
// the lifecycle and conflict guards inside one transaction. A conflict leaves
// the booking pending and is reported both in the result and as SlotConflict.
func (s *bookingService) Approve(ctx context.Context, id string, actor model.Actor) (*model.ApprovalResult, error) {
	if err := lifecycle.Authorize(nil, lifecycle.Approve, actor); err != nil {
		s.cfg.Log.Warn("Approve refused", "id", id, "actor_id", actor.ID, "actor_role", actor.Role)
		return nil, s.translate(err, id)
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}

	lease, err := s.acquireResourceLock(ctx, current.ResourceID)
	if err != nil {
		s.cfg.Log.Warn("Resource lock unavailable", "id", id, "resource_id", current.ResourceID, "error", err)
		return nil, s.translate(err, id)
	}
	defer lease.release()

	// Work past the lease deadline could commit after another approver took
	// over the lock.
	txCtx, cancel := context.WithDeadline(ctx, lease.expiresAt)
	defer cancel()

	var (
		approved  *model.Booking
		pending   *model.Booking
		conflicts *model.Booking
		from      model.BookingStatus
	)
	err = s.repo.ExecuteTransaction(txCtx, func(txCtx context.Context) error {
		b, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		to, err := lifecycle.Apply(b, lifecycle.Approve, actor)
		if err != nil {
			return err
		}

		overlap, err := s.checker.HasConflict(txCtx, b.ResourceID, b.Range(), b.ID)
		if err != nil {
			return err
		}
		if overlap != nil {
			pending, conflicts = b, overlap
			return bookingserrors.ErrSlotConflict
		}

		// The approved set read above is only valid while the lock is ours.
		if err := s.lockRepo.Fence(txCtx, lease.resourceID, lease.owner, s.cfg.LockTTL); err != nil {
			return err
		}

		at := s.now().UTC()
		from = b.Status
		approved, err = s.repo.UpdateStatus(txCtx, b.ID, b.Status, b.Version, repository.StatusChange{
			To:        to,
			At:        at,
			DecidedBy: actor.ID,
			DecidedAt: &at,
		})
		return err
	})

	if errors.Is(err, bookingserrors.ErrSlotConflict) {
		s.cfg.Log.Info("Approval lost to an approved booking",
			"id", id,
			"resource_id", pending.ResourceID,
			"conflicts_with", conflicts.ID,
		)
		result := &model.ApprovalResult{
			Outcome:       model.ApprovalConflicted,
			Booking:       pending,
			ConflictsWith: conflicts,
		}
		return result, apperrors.SlotConflict("Booking overlaps an approved booking").
			WithDetails(map[string]any{"conflicts_with": conflicts.ID}).
			WithCause(bookingserrors.ErrSlotConflict)
	}
	if err != nil {
		return nil, s.fail(ctx, "approve", id, err)
	}

	s.cfg.Log.Info("Booking approved", "id", id, "resource_id", approved.ResourceID, "actor_id", actor.ID)
	s.publish(ctx, model.NewBookingEvent(model.EventBookingApproved, approved, from, actor))
	return &model.ApprovalResult{Outcome: model.ApprovalApproved, Booking: approved}, nil
}

func (s *bookingService) Reject(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	return s.transition(ctx, id, lifecycle.Reject, actor)
}

func (s *bookingService) Cancel(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	return s.transition(ctx, id, lifecycle.Cancel, actor)
}

// transition handles the lifecycle events that need no resource lock: a
// rejected or canceled booking can never create an overlap.
func (s *bookingService) transition(ctx context.Context, id string, event lifecycle.Event, actor model.Actor) (*model.Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}

	to, err := lifecycle.Apply(b, event, actor)
	if err != nil {
		s.cfg.Log.Warn("Booking transition refused",
			"id", id,
			"event", event,
			"status", b.Status,
			"actor_id", actor.ID,
			"error", err,
		)
		return nil, s.translate(err, id)
	}

	at := s.now().UTC()
	change := repository.StatusChange{To: to, At: at}
	switch event {
	case lifecycle.Cancel:
		change.CanceledAt = &at
	case lifecycle.Reject:
		change.DecidedBy = actor.ID
		change.DecidedAt = &at
	}

	updated, err := s.repo.UpdateStatus(ctx, id, b.Status, b.Version, change)
	if err != nil {
		return nil, s.fail(ctx, string(event), id, err)
	}

	s.cfg.Log.Info("Booking status changed",
		"id", id,
		"event", event,
		"from", b.Status,
		"to", updated.Status,
		"actor_id", actor.ID,
	)
	s.publish(ctx, model.NewBookingEvent(lifecycle.EventType(event), updated, b.Status, actor))
	return updated, nil
}

// Edit moves a pending booking to a new range. Overlaps are only checked at
// approval time.
func (s *bookingService) Edit(ctx context.Context, id string, actor model.Actor, req *model.EditBookingRequest) (*model.Booking, error) {
	if err := s.validator.ValidateEdit(req); err != nil {
		s.cfg.Log.Warn("Booking edit validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid edit input", map[string]any{"error": err.Error()})
	}
	tr, err := model.NewTimeRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, s.translate(err, id)
	}

	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	if _, err := lifecycle.Apply(b, lifecycle.Edit, actor); err != nil {
		s.cfg.Log.Warn("Booking edit refused", "id", id, "status", b.Status, "actor_id", actor.ID, "error", err)
		return nil, s.translate(err, id)
	}

	updated, err := s.repo.UpdateRange(ctx, id, b.Version, tr, s.now().UTC())
	if err != nil {
		return nil, s.fail(ctx, "edit", id, err)
	}

	s.cfg.Log.Info("Booking edited", "id", id, "range", tr.String(), "actor_id", actor.ID)
	s.publish(ctx, model.NewBookingEvent(model.EventBookingEdited, updated, b.Status, actor))
	return updated, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if err := s.validator.ValidateFilter(&filter); err != nil {
		return nil, 0, apperrors.Validation("Invalid booking filter", map[string]any{"error": err.Error()})
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = s.translate(errCount, "")
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.List(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings",
				"resource_id", filter.ResourceID,
				"requester_id", filter.RequesterID,
				"limit", limit,
				"offset", offset,
				"error", errFind,
			)
			errFind = s.translate(errFind, "")
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return bookings, count, nil
}

// CheckAvailability is advisory: it reads without the resource lock, so a
// clear answer does not reserve anything.
func (s *bookingService) CheckAvailability(ctx context.Context, resourceID string, start, end time.Time) (*model.Availability, error) {
	resourceID = sanitizer.SanitizeID(resourceID)
	if resourceID == "" {
		return nil, apperrors.InvalidInput("resource_id is required")
	}
	tr, err := model.NewTimeRange(start, end)
	if err != nil {
		return nil, s.translate(err, resourceID)
	}

	status, err := s.roomStatus(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if status != model.RoomAvailable {
		return &model.Availability{Available: false, RoomStatus: status}, nil
	}

	overlap, err := s.checker.HasConflict(ctx, resourceID, tr, "")
	if err != nil {
		s.cfg.Log.Error("Failed to check availability", "resource_id", resourceID, "error", err)
		return nil, s.translate(err, resourceID)
	}
	return &model.Availability{Available: overlap == nil, RoomStatus: status, ConflictsWith: overlap}, nil
}

func (s *bookingService) roomStatus(ctx context.Context, roomID string) (model.RoomStatus, error) {
	status, err := s.rooms.GetStatus(ctx, roomID)
	if err != nil {
		if errors.Is(err, model.ErrRoomNotFound) {
			return "", apperrors.NotFoundWithID("Room", roomID)
		}
		s.cfg.Log.Error("Failed to read room status", "resource_id", roomID, "error", err)
		return "", apperrors.Storage("Failed to read room status", err)
	}
	return status, nil
}

type resourceLease struct {
	resourceID string
	owner      string
	expiresAt  time.Time
	release    func()
}

// acquireResourceLock polls until the lock is ours or LockWaitTimeout passes.
// The lease releases it with the same owner token.
func (s *bookingService) acquireResourceLock(ctx context.Context, resourceID string) (*resourceLease, error) {
	owner := uuid.NewString()
	deadline := time.NewTimer(s.cfg.LockWaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.LockPollInterval)
	defer ticker.Stop()

	for {
		acquiredAt := time.Now()
		ok, err := s.lockRepo.TryAcquire(ctx, resourceID, owner, s.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return &resourceLease{
				resourceID: resourceID,
				owner:      owner,
				expiresAt:  acquiredAt.Add(s.cfg.LockTTL),
				release: func() {
					// The caller's ctx may already be done; release on a fresh one.
					releaseCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
					defer cancel()
					if err := s.lockRepo.Release(releaseCtx, resourceID, owner); err != nil {
						s.cfg.Log.Warn("Failed to release resource lock", "resource_id", resourceID, "error", err)
					}
				},
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, bookingserrors.ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// fail classifies a conditional-write miss by re-reading the booking.
func (s *bookingService) fail(ctx context.Context, op, id string, err error) error {
	if errors.Is(err, bookingserrors.ErrStaleWrite) {
		current, readErr := s.repo.FindByID(ctx, id)
		switch {
		case errors.Is(readErr, bookingserrors.ErrNotFound):
			err = readErr
		case readErr == nil && current.Status != model.BookingPending:
			err = bookingserrors.ErrInvalidTransition
		}
	}

	if errors.Is(err, bookingserrors.ErrStorage) || errors.Is(err, bookingserrors.ErrStaleWrite) {
		s.cfg.Log.Error("Booking write failed", "op", op, "id", id, "error", err)
	} else {
		s.cfg.Log.Warn("Booking write refused", "op", op, "id", id, "error", err)
	}
	return s.translate(err, id)
}

// translate maps repository and lifecycle sentinels onto AppErrors, keeping
// the sentinel as the cause.
func (s *bookingService) translate(err error, id string) error {
	if apperrors.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id).WithCause(bookingserrors.ErrNotFound)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format").WithCause(bookingserrors.ErrInvalidID)
	case errors.Is(err, bookingserrors.ErrInvalidRange):
		return apperrors.InvalidRange(err.Error()).WithCause(bookingserrors.ErrInvalidRange)
	case errors.Is(err, bookingserrors.ErrUnauthorized):
		return apperrors.Forbidden(err.Error()).WithCause(bookingserrors.ErrUnauthorized)
	case errors.Is(err, bookingserrors.ErrInvalidTransition):
		return apperrors.InvalidTransition(err.Error()).WithCause(bookingserrors.ErrInvalidTransition)
	case errors.Is(err, bookingserrors.ErrSlotConflict):
		return apperrors.SlotConflict(err.Error()).WithCause(bookingserrors.ErrSlotConflict)
	case errors.Is(err, bookingserrors.ErrResourceUnavailable):
		return apperrors.ResourceUnavailable("Room", id).WithCause(bookingserrors.ErrResourceUnavailable)
	case errors.Is(err, bookingserrors.ErrLockTimeout):
		return apperrors.Timeout("Timed out waiting for the resource lock").WithCause(bookingserrors.ErrLockTimeout)
	case errors.Is(err, bookingserrors.ErrLockLost):
		return apperrors.Timeout("Resource lock expired before the approval committed").WithCause(bookingserrors.ErrLockLost)
	case errors.Is(err, bookingserrors.ErrStaleWrite):
		return apperrors.Storage("Booking was modified concurrently, re-read and retry", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Operation timed out").WithCause(err)
	case errors.Is(err, context.Canceled):
		return apperrors.Timeout("Operation canceled").WithCause(err)
	default:
		return apperrors.Storage("Booking storage failure", err)
	}
}

func (s *bookingService) publish(ctx context.Context, event model.BookingEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to publish booking event",
			"event_id", event.EventID,
			"type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}
