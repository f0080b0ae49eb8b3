package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	roomserrors "roombooking/internal/rooms/errors"
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*model.Room
}

func NewMemoryRoomRepository() *MemoryRoomRepository {
	return &MemoryRoomRepository{rooms: make(map[string]*model.Room)}
}

func cloneRoom(r *model.Room) *model.Room {
	c := *r
	c.Equipments = append([]string(nil), r.Equipments...)
	return &c
}

func (m *MemoryRoomRepository) Create(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room.ID = primitive.NewObjectID().Hex()
	m.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (m *MemoryRoomRepository) FindByID(_ context.Context, id string) (*model.Room, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, roomserrors.ErrNotFound
	}
	return cloneRoom(room), nil
}

func (m *MemoryRoomRepository) GetStatus(ctx context.Context, id string) (model.RoomStatus, error) {
	room, err := m.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return room.Status, nil
}

func (m *MemoryRoomRepository) List(_ context.Context, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, error) {
	matched := m.match(filter)
	if offset >= int64(len(matched)) {
		return []*model.Room{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryRoomRepository) Count(_ context.Context, filter model.RoomFilter) (int64, error) {
	return int64(len(m.match(filter))), nil
}

func (m *MemoryRoomRepository) match(f model.RoomFilter) []*model.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*model.Room{}
	for _, room := range m.rooms {
		if f.Auditorium != "" && room.Auditorium != f.Auditorium {
			continue
		}
		if f.Floor != nil && room.Floor != *f.Floor {
			continue
		}
		if f.Status != "" && room.Status != f.Status {
			continue
		}
		out = append(out, cloneRoom(room))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Auditorium != out[j].Auditorium {
			return out[i].Auditorium < out[j].Auditorium
		}
		if out[i].Floor != out[j].Floor {
			return out[i].Floor < out[j].Floor
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m *MemoryRoomRepository) UpdateStatus(_ context.Context, id string, status model.RoomStatus, at time.Time) (*model.Room, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, roomserrors.ErrNotFound
	}
	room.Status = status
	room.UpdatedAt = at
	return cloneRoom(room), nil
}
