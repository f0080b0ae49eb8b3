// Package lifecycle holds the booking state machine. It is pure: it never
// touches storage, so the approval conflict guard lives in the service.
package lifecycle

import (
	"fmt"

	bookingserrors "roombooking/internal/bookings/errors"
	"roombooking/pkg/model"
)

type Event string

const (
	Approve Event = "approve"
	Reject  Event = "reject"
	Cancel  Event = "cancel"
	Edit    Event = "edit"
)

type transition struct {
	to        model.BookingStatus
	adminOnly bool
}

// Only pending bookings move. Everything else is terminal or frozen.
var fromPending = map[Event]transition{
	Approve: {to: model.BookingApproved, adminOnly: true},
	Reject:  {to: model.BookingRejected, adminOnly: true},
	Cancel:  {to: model.BookingCanceled},
	Edit:    {to: model.BookingPending},
}

// Authorize runs only the role guard for event. It lets callers reject an
// actor before taking locks or reading storage.
func Authorize(b *model.Booking, event Event, actor model.Actor) error {
	t, ok := fromPending[event]
	if !ok {
		return fmt.Errorf("%w: unknown event %q", bookingserrors.ErrInvalidTransition, event)
	}
	if !actor.Role.Valid() || actor.ID == "" {
		return fmt.Errorf("%w: unknown actor", bookingserrors.ErrUnauthorized)
	}
	if actor.IsAdmin() {
		return nil
	}
	if t.adminOnly {
		return fmt.Errorf("%w: %s requires admin", bookingserrors.ErrUnauthorized, event)
	}
	if b != nil && !actor.Owns(b) {
		return fmt.Errorf("%w: %s requires the requester or an admin", bookingserrors.ErrUnauthorized, event)
	}
	return nil
}

// Apply returns the status b moves to when actor fires event. The role guard
// is checked before the state, so a student approving a canceled booking
// gets ErrUnauthorized rather than ErrInvalidTransition.
func Apply(b *model.Booking, event Event, actor model.Actor) (model.BookingStatus, error) {
	if err := Authorize(b, event, actor); err != nil {
		return "", err
	}
	if b.Status != model.BookingPending {
		return "", fmt.Errorf("%w: cannot %s a booking that is %s", bookingserrors.ErrInvalidTransition, event, b.Status)
	}
	return fromPending[event].to, nil
}

// EventType maps a transition to the lifecycle event published after commit.
func EventType(event Event) model.BookingEventType {
	switch event {
	case Approve:
		return model.EventBookingApproved
	case Reject:
		return model.EventBookingRejected
	case Cancel:
		return model.EventBookingCanceled
	default:
		return model.EventBookingEdited
	}
}
