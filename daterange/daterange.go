// Package daterange resolves the from/to/date/range query parameters shared by the
// listing and aggregation endpoints into an inclusive time interval.
package daterange

import (
	"fmt"
	"time"

	"github.com/pathline/lis/config"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/store"
)

const (
	DateLayout = "2006-01-02"

	RangeToday      = "today"
	RangeLast7Days  = "7days"
	RangeLast30Days = "30days"
)

// Default is what an endpoint falls back to when the query carries no usable bounds.
type Default int

const (
	AllTime Default = iota
	Today
	Last7Days
	Last30Days
)

type Query struct {
	From  *string
	To    *string
	Date  *string
	Range *string
}

type Resolver struct {
	location *time.Location
	now      func() time.Time
}

func NewResolver(cfg *config.Config) *Resolver {
	return NewResolverAt(cfg.Location(), time.Now)
}

func NewResolverAt(location *time.Location, now func() time.Time) *Resolver {
	return &Resolver{location: location, now: now}
}

func (r *Resolver) Location() *time.Location {
	return r.location
}

// Resolve applies the precedence from&to > date > range > def. Both bounds are
// widened to whole days in the resolver's location. A named range that is not
// recognised falls through to the default.
func (r *Resolver) Resolve(q Query, def Default) (store.TimeRange, error) {
	if nonEmpty(q.From) && nonEmpty(q.To) {
		from, err := r.parseDay(*q.From)
		if err != nil {
			return store.TimeRange{}, err
		}
		to, err := r.parseDay(*q.To)
		if err != nil {
			return store.TimeRange{}, err
		}
		if to.Before(from) {
			return store.TimeRange{}, fmt.Errorf("%w: from must not be after to", errors.BadRequest)
		}
		return store.TimeRange{From: StartOfDay(from), To: EndOfDay(to)}, nil
	}

	if nonEmpty(q.Date) {
		day, err := r.parseDay(*q.Date)
		if err != nil {
			return store.TimeRange{}, err
		}
		return store.TimeRange{From: StartOfDay(day), To: EndOfDay(day)}, nil
	}

	if nonEmpty(q.Range) {
		switch *q.Range {
		case RangeToday:
			return r.lastDays(1), nil
		case RangeLast7Days:
			return r.lastDays(7), nil
		case RangeLast30Days:
			return r.lastDays(30), nil
		}
	}

	switch def {
	case Today:
		return r.lastDays(1), nil
	case Last7Days:
		return r.lastDays(7), nil
	case Last30Days:
		return r.lastDays(30), nil
	default:
		return store.TimeRange{}, nil
	}
}

// Today returns the bounds of the current calendar day.
func (r *Resolver) Today() store.TimeRange {
	return r.lastDays(1)
}

// lastDays covers the n calendar days ending today, today included.
func (r *Resolver) lastDays(n int) store.TimeRange {
	today := r.now().In(r.location)
	return store.TimeRange{
		From: StartOfDay(today.AddDate(0, 0, -(n - 1))),
		To:   EndOfDay(today),
	}
}

func (r *Resolver) parseDay(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, r.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", errors.BadRequest, value)
	}
	return t, nil
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// MongoTimezone returns the timezone argument for date operators such as $dateToString.
// The server understands IANA names and UTC offsets only, so the process local zone is
// sent as its offset at t.
func (r *Resolver) MongoTimezone(t time.Time) string {
	if name := r.location.String(); name != "Local" && name != "" {
		return name
	}
	_, offset := t.In(r.location).Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

// Days lists the calendar days of a bounded range in DateLayout, ascending.
func (r *Resolver) Days(tr store.TimeRange) []string {
	if tr.From.IsZero() || tr.To.IsZero() {
		return nil
	}
	var days []string
	for d := StartOfDay(tr.From.In(r.location)); !d.After(tr.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}
