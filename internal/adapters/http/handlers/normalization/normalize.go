package normalization

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	"github.com/reybrally/fulfillment-service/internal/domain/analytics"
)

var ErrInvalidRange = errors.New("invalid date range")

// layouts accepted for range bounds, most specific first.
var layouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// NormalizeListFilter moves bounds to UTC seconds, clamps CreatedTo to now and
// swaps reversed bounds.
func NormalizeListFilter(f *orders.ListFilter, now time.Time) {
	if f == nil {
		return
	}
	now = now.UTC()

	if f.CreatedFrom != nil {
		t := f.CreatedFrom.UTC()
		f.CreatedFrom = &t
	}
	if f.CreatedTo != nil {
		t := f.CreatedTo.UTC()
		if t.After(now) {
			t = now
		}
		f.CreatedTo = &t
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		from := *f.CreatedTo
		to := *f.CreatedFrom
		f.CreatedFrom = &from
		f.CreatedTo = &to
	}
	// Only the lower bound is rounded to seconds.
	if f.CreatedFrom != nil {
		t := f.CreatedFrom.Truncate(time.Second)
		f.CreatedFrom = &t
	}
	f.UserID = strings.TrimSpace(f.UserID)
	if f.Limit < 0 {
		f.Limit = 0
	}
}

// ParseTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func ParseTime(s string, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		t, err := time.Parse(l, s)
		if err != nil {
			continue
		}
		if l == "2006-01-02" && upper {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrInvalidRange, s)
}

// ParseDateFilter builds the analytics range from query values. No bounds
// yields nil, the unfiltered view. Both bounds are required otherwise.
func ParseDateFilter(start, end, preset string) (*analytics.DateFilter, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: start and end must be given together", ErrInvalidRange)
	}
	from, err := ParseTime(start, false)
	if err != nil {
		return nil, err
	}
	to, err := ParseTime(end, true)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: start is after end", ErrInvalidRange)
	}
	return &analytics.DateFilter{
		Start:  from.Truncate(time.Millisecond),
		End:    to.Truncate(time.Millisecond),
		Preset: strings.ToLower(strings.TrimSpace(preset)),
	}, nil
}
