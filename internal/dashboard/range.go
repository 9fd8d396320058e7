package dashboard

import (
	"fmt"
	"strings"
	"time"

	"resit/internal/core"
	"resit/internal/receipts"
)

// DefaultRangeDays is the length of the range selected on first load.
const DefaultRangeDays = 30

// Range is an inclusive pair of calendar days. A zero bound is open. A
// blank Currency covers every currency.
type Range struct {
	From     core.Date
	To       core.Date
	Currency string
}

// DefaultRange returns the last DefaultRangeDays days ending today.
func DefaultRange(now time.Time) Range {
	today := core.NewDate(now.Year(), int(now.Month()), now.Day())
	return Range{
		From: core.Date{Time: today.AddDate(0, 0, -(DefaultRangeDays - 1))},
		To:   today,
	}
}

// ParseRange builds a range from YYYY-MM-DD strings. Blank values fall back
// to the matching bound of fallback. from > to is accepted.
func ParseRange(from, to string, fallback Range) (Range, error) {
	r := fallback
	if from != "" {
		d, err := core.ParseDate(from)
		if err != nil {
			return Range{}, fmt.Errorf("parse from %q: %w", from, err)
		}
		r.From = d
	}
	if to != "" {
		d, err := core.ParseDate(to)
		if err != nil {
			return Range{}, fmt.Errorf("parse to %q: %w", to, err)
		}
		r.To = d
	}
	return r, nil
}

// Cache key kinds.
const (
	KindDaily      = "daily"
	KindCategories = "categories"
)

// Key derives the query cache key for the range.
func (r Range) Key() string {
	return r.KeyFor(KindDaily)
}

// KeyFor derives a cache key for another view of the same range. The
// currency is appended only when set.
func (r Range) KeyFor(kind string) string {
	key := kind + ":" + boundKey(r.From) + ":" + boundKey(r.To)
	if r.Currency != "" {
		key += ":" + r.Currency
	}
	return key
}

// RangeFromKey recovers the range encoded in a key built by KeyFor.
func RangeFromKey(key string) (Range, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return Range{}, false
	}
	var r Range
	if len(parts) == 4 {
		if parts[3] == "" {
			return Range{}, false
		}
		r.Currency = parts[3]
	}
	for i, p := range parts[1:3] {
		if p == "*" {
			continue
		}
		d, err := core.ParseDate(p)
		if err != nil {
			return Range{}, false
		}
		if i == 0 {
			r.From = d
		} else {
			r.To = d
		}
	}
	return r, true
}

// Contains reports whether day falls inside the inclusive range.
func (r Range) Contains(day core.Date) bool {
	if !r.From.IsEmpty() && day.Before(r.From.Time) {
		return false
	}
	if !r.To.IsEmpty() && day.After(r.To.Time) {
		return false
	}
	return true
}

// Query converts the inclusive range to a fetch query. The upper bound is
// exclusive: start of the day after To.
func (r Range) Query() receipts.Query {
	q := receipts.Query{Currency: r.Currency}
	if !r.From.IsEmpty() {
		start := startOfDay(r.From.Time)
		q.Start = &start
	}
	if !r.To.IsEmpty() {
		end := startOfDay(r.To.AddDate(0, 0, 1))
		q.End = &end
	}
	return q
}

func (r Range) String() string {
	s := boundKey(r.From) + ".." + boundKey(r.To)
	if r.Currency != "" {
		s += " " + r.Currency
	}
	return s
}

func boundKey(d core.Date) string {
	if d.IsEmpty() {
		return "*"
	}
	return d.Key()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
