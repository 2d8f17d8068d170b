package clock

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidRange = errors.New("tanggal_end is before tanggal_start")
)

// Resolver decides what calendar day it is for the whole system.
// Every "today" must come from the same Resolver so that recorders, guardians
// and reports agree regardless of the server's own timezone.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver builds a resolver pinned to a fixed UTC offset in hours.
func NewResolver(offsetHours int) *Resolver {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	if offsetHours == 7 {
		name = "WIB"
	}
	return &Resolver{
		loc: time.FixedZone(name, offsetHours*3600),
		now: time.Now,
	}
}

// WithNow returns a copy of r that reads the current instant from now.
func (r *Resolver) WithNow(now func() time.Time) *Resolver {
	return &Resolver{loc: r.loc, now: now}
}

// Location returns the fixed zone used for calendar days.
func (r *Resolver) Location() *time.Location { return r.loc }

// Now returns the current instant in the resolver's zone.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

// Today returns the current calendar day as YYYY-MM-DD.
func (r *Resolver) Today() string { return r.Now().Format(DateLayout) }

// ParseDate validates a YYYY-MM-DD string and returns it as a day in the
// resolver's zone.
func (r *Resolver) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Range resolves a start/end pair. An empty start means today, an empty end
// means the same day as start.
func (r *Resolver) Range(start, end string) (string, string, error) {
	if start == "" {
		start = r.Today()
	}
	if end == "" {
		end = start
	}
	from, err := r.ParseDate(start)
	if err != nil {
		return "", "", err
	}
	to, err := r.ParseDate(end)
	if err != nil {
		return "", "", err
	}
	if to.Before(from) {
		return "", "", ErrInvalidRange
	}
	return from.Format(DateLayout), to.Format(DateLayout), nil
}
