package model

import (
	"errors"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomMaintenance RoomStatus = "maintenance"
)

func (s RoomStatus) Valid() bool {
	return s == RoomAvailable || s == RoomMaintenance
}

type Room struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty"`
	Name       string     `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Auditorium string     `json:"auditorium" bson:"auditorium" validate:"required,min=1,max=50"`
	Floor      int        `json:"floor" bson:"floor" validate:"min=0,max=200"`
	Location   string     `json:"location" bson:"location" validate:"omitempty,max=200"`
	Capacity   int        `json:"capacity" bson:"capacity" validate:"required,min=1,max=2000"`
	Equipments []string   `json:"equipments" bson:"equipments" validate:"omitempty,max=50,dive,min=1,max=50"`
	Status     RoomStatus `json:"status" bson:"status" validate:"required,room_status"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

type RoomStatusUpdate struct {
	Status RoomStatus `json:"status" validate:"required,room_status"`
}

type RoomFilter struct {
	Auditorium string
	Floor      *int
	Status     RoomStatus
}
