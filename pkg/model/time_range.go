package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRange = errors.New("end time must be after start time")

// TimeRange is a half-open interval [start, end). Instants are kept in UTC at
// millisecond precision so a range compares the same before and after it is
// stored.
type TimeRange struct {
	start time.Time
	end   time.Time
}

func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}

	s := canonical(start)
	e := canonical(end)
	if !e.After(s) {
		return TimeRange{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidRange, s.Format(time.RFC3339), e.Format(time.RFC3339))
	}

	return TimeRange{start: s, end: e}, nil
}

func canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func (r TimeRange) Start() time.Time { return r.start }

func (r TimeRange) End() time.Time { return r.end }

func (r TimeRange) Duration() time.Duration { return r.end.Sub(r.start) }

func (r TimeRange) IsZero() bool { return r.start.IsZero() && r.end.IsZero() }

// Overlaps reports whether the two ranges share any instant. Touching
// endpoints do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.start.Before(other.end) && other.start.Before(r.end)
}

func (r TimeRange) Contains(t time.Time) bool {
	t = canonical(t)
	return !t.Before(r.start) && t.Before(r.end)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.start.Format(time.RFC3339), r.end.Format(time.RFC3339))
}
