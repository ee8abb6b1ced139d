package analytics

import (
	"strings"
	"time"
)

var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Buckets holds one running sum per calendar month, index 0 = January.
type Buckets [12]float64

// Add coerces raw with SafeNumber and accumulates it into month.
func (b *Buckets) Add(month int, raw any) {
	b[month] += SafeNumber(raw)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts the timestamp shapes Postgres and PostgREST emit.
// Values without an offset are read in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// yearFilter maps a created_at value to its month index when it falls in
// the given year of loc.
type yearFilter struct {
	year int
	loc  *time.Location
}

func (f yearFilter) month(createdAt string) (int, bool) {
	t, ok := parseTimestamp(createdAt, f.loc)
	if !ok {
		return 0, false
	}
	t = t.In(f.loc)
	if t.Year() != f.year {
		return 0, false
	}
	return int(t.Month()) - 1, true
}
