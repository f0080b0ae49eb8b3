package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"roombooking/pkg/model"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func hours(from, to int) model.TimeRange {
	r, err := model.NewTimeRange(day.Add(time.Duration(from)*time.Hour), day.Add(time.Duration(to)*time.Hour))
	if err != nil {
		panic(err)
	}
	return r
}

func approved(id string, from, to int) *model.Booking {
	b := &model.Booking{ID: id, ResourceID: "r1", Status: model.BookingApproved}
	b.SetRange(hours(from, to))
	return b
}

type mockFinder struct {
	findFunc func(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error)
}

func (m *mockFinder) FindApprovedByResource(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error) {
	return m.findFunc(ctx, resourceID, window, excludeID)
}

func TestFirstOverlap(t *testing.T) {
	existing := []*model.Booking{approved("a", 9, 11), approved("b", 13, 14)}

	tests := []struct {
		name      string
		candidate model.TimeRange
		excludeID string
		wantID    string
	}{
		{name: "clear before", candidate: hours(7, 8)},
		{name: "adjacent after first", candidate: hours(11, 13)},
		{name: "adjacent before first", candidate: hours(8, 9)},
		{name: "partial overlap", candidate: hours(10, 12), wantID: "a"},
		{name: "identical", candidate: hours(9, 11), wantID: "a"},
		{name: "contains second", candidate: hours(12, 15), wantID: "b"},
		{name: "excluded self", candidate: hours(9, 11), excludeID: "a"},
		{name: "first match wins", candidate: hours(8, 15), wantID: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FirstOverlap(existing, tt.candidate, tt.excludeID)
			if tt.wantID == "" {
				if got != nil {
					t.Fatalf("expected no conflict, got %s", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Fatalf("expected conflict with %s, got %v", tt.wantID, got)
			}
		})
	}
}

func TestFirstOverlap_IgnoresNonApproved(t *testing.T) {
	pending := approved("p", 9, 11)
	pending.Status = model.BookingPending
	canceled := approved("c", 9, 11)
	canceled.Status = model.BookingCanceled

	if got := FirstOverlap([]*model.Booking{pending, canceled, nil}, hours(9, 11), ""); got != nil {
		t.Fatalf("only approved bookings conflict, got %s", got.ID)
	}
}

func TestChecker_HasConflict(t *testing.T) {
	finder := &mockFinder{
		findFunc: func(ctx context.Context, resourceID string, window model.TimeRange, excludeID string) ([]*model.Booking, error) {
			if resourceID != "r1" {
				t.Errorf("unexpected resource %s", resourceID)
			}
			if excludeID != "self" {
				t.Errorf("exclude id not forwarded, got %q", excludeID)
			}
			return []*model.Booking{approved("a", 9, 11)}, nil
		},
	}

	got, err := NewChecker(finder).HasConflict(context.Background(), "r1", hours(10, 12), "self")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "a" {
		t.Fatalf("expected conflict with a, got %v", got)
	}
}

func TestChecker_HasConflict_StorageError(t *testing.T) {
	storageErr := errors.New("connection reset")
	finder := &mockFinder{
		findFunc: func(context.Context, string, model.TimeRange, string) ([]*model.Booking, error) {
			return nil, storageErr
		},
	}

	_, err := NewChecker(finder).HasConflict(context.Background(), "r1", hours(10, 12), "")
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}
