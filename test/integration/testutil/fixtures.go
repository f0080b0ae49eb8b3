package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"roombooking/pkg/model"
)

var (
	Admin    = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	Student  = model.Actor{ID: "student-1", Role: model.RoleStudent}
	Lecturer = model.Actor{ID: "lecturer-1", Role: model.RoleLecturer}
)

var roomSeq atomic.Int64

type RoomBuilder struct {
	room model.Room
}

func NewRoomBuilder() *RoomBuilder {
	n := roomSeq.Add(1)
	return &RoomBuilder{
		room: model.Room{
			Name:       fmt.Sprintf("Room %d", n),
			Auditorium: "A",
			Floor:      1,
			Location:   "Main building",
			Capacity:   30,
			Equipments: []string{"projector"},
			Status:     model.RoomAvailable,
		},
	}
}

func (b *RoomBuilder) WithStatus(status model.RoomStatus) *RoomBuilder {
	b.room.Status = status
	return b
}

func (b *RoomBuilder) WithAuditorium(auditorium string, floor int) *RoomBuilder {
	b.room.Auditorium = auditorium
	b.room.Floor = floor
	return b
}

func (b *RoomBuilder) Build() *model.Room {
	room := b.room
	return &room
}

// Slot returns a one-hour window starting hours after the next midnight UTC,
// far enough ahead that runs on the same day never collide with stale data.
func Slot(day, hours int) (time.Time, time.Time) {
	base := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, day+1)
	start := base.Add(time.Duration(hours) * time.Hour)
	return start, start.Add(time.Hour)
}

func BookingRequest(resourceID string, start, end time.Time) *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		ResourceID: resourceID,
		StartTime:  start,
		EndTime:    end,
	}
}
