package errors

import (
	"errors"

	"roombooking/pkg/model"
)

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrInvalidRange = model.ErrInvalidRange

	ErrResourceUnavailable = errors.New("resource is not accepting bookings")

	ErrSlotConflict = errors.New("booking overlaps an approved booking")

	ErrInvalidTransition = errors.New("transition not allowed from current status")

	ErrUnauthorized = errors.New("actor is not allowed to perform this action")

	// ErrStaleWrite means a conditional write matched nothing although the
	// booking still has the status that was read.
	ErrStaleWrite = errors.New("booking was modified concurrently")

	ErrLockTimeout = errors.New("timed out waiting for resource lock")

	// ErrLockLost means the resource lock expired or changed owner before the
	// holder committed.
	ErrLockLost = errors.New("resource lock lost before commit")

	ErrStorage = errors.New("storage failure")
)
