package clinichours

import (
	"time"

	"github.com/clinicbook/clinic-booking/internal/interval"
)

// Window is a same-day open interval expressed as whole clock hours.
type Window struct {
	OpenHour  int
	CloseHour int
}

// Policy resolves the clinic's fixed weekly opening hours. All weekday
// derivation happens in the clinic timezone, never UTC or server-local
// time, so dates near midnight do not land on the wrong weekday.
type Policy struct {
	loc *time.Location
}

func NewPolicy(loc *time.Location) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	return &Policy{loc: loc}
}

func (p *Policy) Location() *time.Location {
	return p.loc
}

// Date returns midnight of the given calendar day in the clinic timezone.
func (p *Policy) Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, p.loc)
}

// Midnight truncates t to the start of its clinic-timezone day.
func (p *Policy) Midnight(t time.Time) time.Time {
	d := t.In(p.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, p.loc)
}

// HoursFor returns the opening window for the day containing date, or
// ok=false when the clinic is closed. Sunday is closed, Saturday runs a
// shorter window, Monday through Friday the standard one.
func (p *Policy) HoursFor(date time.Time) (Window, bool) {
	switch date.In(p.loc).Weekday() {
	case time.Sunday:
		return Window{}, false
	case time.Saturday:
		return Window{OpenHour: 10, CloseHour: 15}, true
	default:
		return Window{OpenHour: 9, CloseHour: 17}, true
	}
}

// OpenAt returns the opening instant of the window on the given day.
func (p *Policy) OpenAt(date time.Time, w Window) time.Time {
	d := date.In(p.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), w.OpenHour, 0, 0, 0, p.loc)
}

// CloseAt returns the closing instant of the window on the given day.
func (p *Policy) CloseAt(date time.Time, w Window) time.Time {
	d := date.In(p.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), w.CloseHour, 0, 0, 0, p.loc)
}

// DayWindow returns the [midnight, next midnight) interval for the day
// containing date, in the clinic timezone.
func (p *Policy) DayWindow(date time.Time) interval.Interval {
	start := p.Midnight(date)
	return interval.Interval{Start: start, End: start.AddDate(0, 0, 1)}
}
