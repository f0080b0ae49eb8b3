package conflict

import (
	"context"
	"fmt"

	"roombooking/pkg/model"
)

// ApprovedBookingFinder returns the approved bookings of a resource. Implementations
// may narrow by time, the pairwise overlap test is always re-applied here.
type ApprovedBookingFinder interface {
	FindApprovedByResource(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error)
}

type Checker struct {
	finder ApprovedBookingFinder
}

func NewChecker(finder ApprovedBookingFinder) *Checker {
	return &Checker{finder: finder}
}

// HasConflict returns the first approved booking of resourceID that overlaps
// candidate, or nil when the slot is clear.
func (c *Checker) HasConflict(ctx context.Context, resourceID string, candidate model.TimeRange, excludeID string) (*model.Booking, error) {
	existing, err := c.finder.FindApprovedByResource(ctx, resourceID, candidate, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved bookings: %w", err)
	}
	return FirstOverlap(existing, candidate, excludeID), nil
}

// FirstOverlap scans existing in order. Only approved bookings count and the
// booking with excludeID is skipped.
func FirstOverlap(existing []*model.Booking, candidate model.TimeRange, excludeID string) *model.Booking {
	for _, b := range existing {
		if b == nil || b.Status != model.BookingApproved {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if b.Range().Overlaps(candidate) {
			return b
		}
	}
	return nil
}
