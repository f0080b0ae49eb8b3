package model

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingApproved BookingStatus = "approved"
	BookingRejected BookingStatus = "rejected"
	BookingCanceled BookingStatus = "canceled"
)

var BookingStatuses = []BookingStatus{BookingPending, BookingApproved, BookingRejected, BookingCanceled}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingApproved, BookingRejected, BookingCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingApproved || s == BookingRejected || s == BookingCanceled
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown booking status %q", s)
	}
	return status, nil
}

type Booking struct {
	ID          string        `json:"id,omitempty" bson:"_id,omitempty"`
	ResourceID  string        `json:"resource_id" bson:"resource_id"`
	RequesterID string        `json:"requester_id" bson:"requester_id"`
	StartTime   time.Time     `json:"start_time" bson:"start_time"`
	EndTime     time.Time     `json:"end_time" bson:"end_time"`
	Status      BookingStatus `json:"status" bson:"status"`
	Version     int64         `json:"version" bson:"version"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
	CanceledAt  *time.Time    `json:"canceled_at,omitempty" bson:"canceled_at,omitempty"`
	DecidedBy   string        `json:"decided_by,omitempty" bson:"decided_by,omitempty"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty" bson:"decided_at,omitempty"`
}

// Range returns the stored interval. Stored bookings always satisfy
// end > start, so no validation happens here.
func (b *Booking) Range() TimeRange {
	return TimeRange{start: canonical(b.StartTime), end: canonical(b.EndTime)}
}

func (b *Booking) SetRange(r TimeRange) {
	b.StartTime = r.Start()
	b.EndTime = r.End()
}

type CreateBookingRequest struct {
	ResourceID  string    `json:"resource_id" validate:"required,mongodb"`
	RequesterID string    `json:"requester_id,omitempty" validate:"omitempty,max=128"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
}

type EditBookingRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// BookingFilter narrows ListBookings. Zero fields are ignored; From/To select
// bookings overlapping the window.
type BookingFilter struct {
	ResourceID  string        `validate:"omitempty,mongodb"`
	RequesterID string        `validate:"omitempty,max=128"`
	Status      BookingStatus `validate:"omitempty,booking_status"`
	From        *time.Time
	To          *time.Time
}
