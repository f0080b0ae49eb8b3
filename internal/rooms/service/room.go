package service

import (
	"context"
	"errors"
	"sync"
	"time"

	roomserrors "roombooking/internal/rooms/errors"
	"roombooking/internal/rooms/repository"
	"roombooking/internal/rooms/validator"
	"roombooking/pkg/config"
	apperrors "roombooking/pkg/errors"
	"roombooking/pkg/model"
	"roombooking/pkg/sanitizer"
)

type RoomService interface {
	Create(ctx context.Context, room *model.Room, actor model.Actor) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, int64, error)
	SetStatus(ctx context.Context, id string, update *model.RoomStatusUpdate, actor model.Actor) (*model.Room, error)
}

type roomService struct {
	repo      repository.RoomRepository
	validator *validator.RoomValidator
	cfg       *config.Config
}

func NewRoomService(repo repository.RoomRepository, validator *validator.RoomValidator, cfg *config.Config) RoomService {
	return &roomService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *roomService) Create(ctx context.Context, room *model.Room, actor model.Actor) error {
	if !actor.IsAdmin() {
		s.cfg.Log.Warn("Room creation refused", "actor_id", actor.ID, "actor_role", actor.Role)
		return apperrors.Forbidden("Only admins can create rooms")
	}

	if room.Status == "" {
		room.Status = model.RoomAvailable
	}
	room.Name = sanitizer.NormalizeName(room.Name)
	room.Auditorium = sanitizer.SanitizeKey(room.Auditorium)
	room.Location = sanitizer.TrimAndNormalize(room.Location)
	room.Equipments = sanitizer.NormalizeEquipments(room.Equipments)

	if err := s.validator.Validate(room); err != nil {
		s.cfg.Log.Warn("Room validation failed", "name", room.Name, "error", err)
		return apperrors.Validation("Invalid room input", map[string]any{"error": err.Error()})
	}

	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	if err := s.repo.Create(ctx, room); err != nil {
		s.cfg.Log.Error("Failed to create room", "name", room.Name, "error", err)
		return apperrors.Storage("Failed to create room", err)
	}

	s.cfg.Log.Info("Room created successfully",
		"id", room.ID,
		"name", room.Name,
		"auditorium", room.Auditorium,
		"floor", room.Floor,
	)
	return nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve room")
	}
	return room, nil
}

func (s *roomService) List(ctx context.Context, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.InvalidInput("status must be one of: available, maintenance")
	}
	filter.Auditorium = sanitizer.SanitizeKey(filter.Auditorium)

	var count int64
	var rooms []*model.Room
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count rooms", "error", errCount)
			errCount = apperrors.Storage("Failed to count rooms", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		rooms, errFind = s.repo.List(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list rooms", "error", errFind)
			errFind = apperrors.Storage("Failed to retrieve rooms", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return rooms, count, nil
}

// SetStatus toggles a room between available and maintenance. Existing
// bookings are left alone; maintenance only blocks new ones.
func (s *roomService) SetStatus(ctx context.Context, id string, update *model.RoomStatusUpdate, actor model.Actor) (*model.Room, error) {
	if !actor.IsAdmin() {
		s.cfg.Log.Warn("Room status change refused", "id", id, "actor_id", actor.ID, "actor_role", actor.Role)
		return nil, apperrors.Forbidden("Only admins can change room status")
	}
	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		return nil, apperrors.Validation("Invalid status update", map[string]any{"error": err.Error()})
	}

	room, err := s.repo.UpdateStatus(ctx, sanitizer.SanitizeID(id), update.Status, time.Now().UTC())
	if err != nil {
		return nil, s.translate(err, id, "Failed to update room status")
	}

	s.cfg.Log.Info("Room status changed", "id", id, "status", room.Status, "actor_id", actor.ID)
	return room, nil
}

func (s *roomService) translate(err error, id, msg string) error {
	switch {
	case errors.Is(err, roomserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Room", id).WithCause(roomserrors.ErrNotFound)
	case errors.Is(err, roomserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid room ID format").WithCause(roomserrors.ErrInvalidID)
	default:
		s.cfg.Log.Error(msg, "id", id, "error", err)
		return apperrors.Storage(msg, err)
	}
}
