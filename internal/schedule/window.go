// Package schedule evaluates organization working-hours windows.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Mutter0815/OutreachHub/internal/campaign"
)

var (
	ErrMissing   = errors.New("working hours not configured")
	ErrMalformed = errors.New("malformed working hours")
)

var dayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Window is a compiled working-hours configuration. Times are seconds since
// local midnight; the interval is [start, end).
type Window struct {
	loc   *time.Location
	start int
	end   int
	days  [7]bool
}

// Parse validates a working-hours configuration and compiles it.
func Parse(w *campaign.WorkingHours) (Window, error) {
	if w == nil {
		return Window{}, ErrMissing
	}
	if w.Malformed {
		return Window{}, ErrMalformed
	}

	var out Window
	var err error

	if strings.TrimSpace(w.Timezone) == "" {
		return Window{}, fmt.Errorf("%w: timezone is empty", ErrMalformed)
	}
	if out.loc, err = time.LoadLocation(strings.TrimSpace(w.Timezone)); err != nil {
		return Window{}, fmt.Errorf("%w: timezone %q: %v", ErrMalformed, w.Timezone, err)
	}
	if out.start, err = parseClock(w.Start); err != nil {
		return Window{}, fmt.Errorf("%w: start: %v", ErrMalformed, err)
	}
	if out.end, err = parseClock(w.End); err != nil {
		return Window{}, fmt.Errorf("%w: end: %v", ErrMalformed, err)
	}
	if out.start >= out.end {
		return Window{}, fmt.Errorf("%w: start %s is not before end %s", ErrMalformed, w.Start, w.End)
	}

	if len(w.Days) == 0 {
		return Window{}, fmt.Errorf("%w: no active days", ErrMalformed)
	}
	for _, d := range w.Days {
		wd, err := parseDay(d)
		if err != nil {
			return Window{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out.days[wd] = true
	}
	return out, nil
}

// Contains reports whether t, converted to the window's timezone, falls on an
// active day inside [start, end).
func (w Window) Contains(t time.Time) bool {
	if w.loc == nil {
		return false
	}
	lt := t.In(w.loc)
	if !w.days[lt.Weekday()] {
		return false
	}
	sec := lt.Hour()*3600 + lt.Minute()*60 + lt.Second()
	return sec >= w.start && sec < w.end
}

func (w Window) String() string {
	days := make([]string, 0, 7)
	for d, on := range w.days {
		if on {
			days = append(days, time.Weekday(d).String()[:3])
		}
	}
	name := "<nil>"
	if w.loc != nil {
		name = w.loc.String()
	}
	return fmt.Sprintf("%s-%s %s [%s]", clock(w.start), clock(w.end), name, strings.Join(days, ","))
}

func clock(sec int) string {
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec%3600/60, sec%60)
}

// parseClock accepts HH:MM and HH:MM:SS.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	limits := []int{23, 59, 59}
	mult := []int{3600, 60, 1}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total += n * mult[i]
	}
	return total, nil
}

func parseDay(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := dayNames[key]; ok {
		return wd, nil
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 || n > 7 {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	// 7 is ISO Sunday.
	return time.Weekday(n % 7), nil
}
