package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrNoHandler = errors.New("scheduler: task has no handler")

// InvalidSpecError reports a task declared with both an interval and clock
// times, with neither, or with values that cannot be parsed.
type InvalidSpecError struct {
	Task   string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid task spec %q: %s", e.Task, e.Reason)
}

// Descriptor declares a recurring task. Set the interval units (they are
// summed) or Times, not both.
type Descriptor struct {
	Name string

	Hours        int64
	Minutes      int64
	Seconds      int64
	Milliseconds int64

	// Times are daily clock times, "HH:MM" or "HH:MM:SS".
	Times []string

	Run func(ctx context.Context) error
}

func (d Descriptor) interval() time.Duration {
	return time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second +
		time.Duration(d.Milliseconds)*time.Millisecond
}

type TaskKind int

const (
	KindInterval TaskKind = iota
	KindClock
)

func (k TaskKind) String() string {
	if k == KindClock {
		return "clock"
	}
	return "interval"
}

// Task is a validated Descriptor.
type Task struct {
	Name  string
	Group string
	Kind  TaskKind
	Every time.Duration
	Times []Clock
	Run   func(ctx context.Context) error
}

// Compile validates d. group names the owning command group in logs.
func Compile(group string, d Descriptor) (Task, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = "unnamed"
	}
	if group != "" {
		name = group + "." + name
	}
	if d.Run == nil {
		return Task{}, fmt.Errorf("%s: %w", name, ErrNoHandler)
	}
	if d.Hours < 0 || d.Minutes < 0 || d.Seconds < 0 || d.Milliseconds < 0 {
		return Task{}, &InvalidSpecError{Task: name, Reason: "interval units must not be negative"}
	}

	every := d.interval()
	switch {
	case every > 0 && len(d.Times) > 0:
		return Task{}, &InvalidSpecError{Task: name, Reason: "both an interval and clock times are set"}
	case every <= 0 && len(d.Times) == 0:
		return Task{}, &InvalidSpecError{Task: name, Reason: "neither an interval nor clock times are set"}
	case every > 0:
		return Task{Name: name, Group: group, Kind: KindInterval, Every: every, Run: d.Run}, nil
	}

	times := make([]Clock, 0, len(d.Times))
	seen := map[Clock]bool{}
	for _, raw := range d.Times {
		c, err := ParseClock(raw)
		if err != nil {
			return Task{}, &InvalidSpecError{Task: name, Reason: err.Error()}
		}
		if !seen[c] {
			seen[c] = true
			times = append(times, c)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return Task{Name: name, Group: group, Kind: KindClock, Times: times, Run: d.Run}, nil
}

// Clock is a time of day in seconds since midnight.
type Clock int

const day = Clock(24 * 60 * 60)

func NewClock(h, m, s int) Clock { return Clock(h*3600 + m*60 + s) }

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock { return NewClock(t.Hour(), t.Minute(), t.Second()) }

func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q (want HH:MM or HH:MM:SS)", raw)
}

func (c Clock) Hour() int   { return int(c) / 3600 }
func (c Clock) Minute() int { return int(c) % 3600 / 60 }
func (c Clock) Second() int { return int(c) % 60 }

func (c Clock) String() string {
	if c.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// NearestTime picks the next time to run from times given the current time
// of day. The smallest time strictly after now wins; if none is left today the
// time arriving soonest tomorrow wins. times must be sorted ascending and
// non-empty, so ties always resolve to the smallest time.
func NearestTime(times []Clock, now Clock) Clock {
	for _, t := range times {
		if t > now {
			return t
		}
	}
	// Nothing left today; the earliest time is also the first one tomorrow.
	return times[0]
}

// NextRun returns the instant of the nearest upcoming time after from, in
// from's location.
func NextRun(times []Clock, from time.Time) time.Time {
	now := ClockOf(from)
	next := NearestTime(times, now)
	y, m, d := from.Date()
	if next <= now {
		d++
	}
	return time.Date(y, m, d, next.Hour(), next.Minute(), next.Second(), 0, from.Location())
}

// clockSchedule adapts NextRun to cron.Schedule.
type clockSchedule struct {
	times []Clock
}

func (s clockSchedule) Next(t time.Time) time.Time { return NextRun(s.times, t) }
