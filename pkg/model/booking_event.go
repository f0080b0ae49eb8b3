package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingEventType string

const (
	EventBookingCreated  BookingEventType = "booking.created"
	EventBookingApproved BookingEventType = "booking.approved"
	EventBookingRejected BookingEventType = "booking.rejected"
	EventBookingCanceled BookingEventType = "booking.canceled"
	EventBookingEdited   BookingEventType = "booking.edited"
)

type BookingEvent struct {
	EventID     string           `json:"event_id" bson:"_id"`
	Type        BookingEventType `json:"type" bson:"type"`
	BookingID   string           `json:"booking_id" bson:"booking_id"`
	ResourceID  string           `json:"resource_id" bson:"resource_id"`
	RequesterID string           `json:"requester_id" bson:"requester_id"`
	ActorID     string           `json:"actor_id" bson:"actor_id"`
	ActorRole   Role             `json:"actor_role" bson:"actor_role"`
	FromStatus  BookingStatus    `json:"from_status,omitempty" bson:"from_status,omitempty"`
	ToStatus    BookingStatus    `json:"to_status" bson:"to_status"`
	StartTime   time.Time        `json:"start_time" bson:"start_time"`
	EndTime     time.Time        `json:"end_time" bson:"end_time"`
	OccurredAt  time.Time        `json:"occurred_at" bson:"occurred_at"`
}

func NewBookingEvent(eventType BookingEventType, b *Booking, from BookingStatus, actor Actor) BookingEvent {
	return BookingEvent{
		EventID:     uuid.New().String(),
		Type:        eventType,
		BookingID:   b.ID,
		ResourceID:  b.ResourceID,
		RequesterID: b.RequesterID,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		FromStatus:  from,
		ToStatus:    b.Status,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		OccurredAt:  b.UpdatedAt,
	}
}
