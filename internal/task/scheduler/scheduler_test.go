package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "relaybot/pkg/logx"
)

func noop(context.Context) error { return nil }

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       Descriptor
		invalid bool
		check   func(t *testing.T, task Task)
	}{
		{
			name:    "both interval and times",
			d:       Descriptor{Name: "x", Minutes: 1, Times: []string{"09:00"}, Run: noop},
			invalid: true,
		},
		{
			name:    "neither",
			d:       Descriptor{Name: "x", Run: noop},
			invalid: true,
		},
		{
			name:    "negative unit",
			d:       Descriptor{Name: "x", Seconds: -1, Minutes: 1, Run: noop},
			invalid: true,
		},
		{
			name:    "bad clock time",
			d:       Descriptor{Name: "x", Times: []string{"25:99"}, Run: noop},
			invalid: true,
		},
		{
			name: "interval units are summed",
			d:    Descriptor{Name: "sum", Hours: 1, Minutes: 2, Seconds: 3, Milliseconds: 4, Run: noop},
			check: func(t *testing.T, task Task) {
				assert.Equal(t, KindInterval, task.Kind)
				assert.Equal(t, time.Hour+2*time.Minute+3*time.Second+4*time.Millisecond, task.Every)
				assert.Equal(t, "grp.sum", task.Name)
			},
		},
		{
			name: "clock times sorted and deduplicated",
			d:    Descriptor{Name: "digest", Times: []string{"21:00", "09:00", "09:00:00", " 12:30:15 "}, Run: noop},
			check: func(t *testing.T, task Task) {
				assert.Equal(t, KindClock, task.Kind)
				assert.Equal(t, []Clock{NewClock(9, 0, 0), NewClock(12, 30, 15), NewClock(21, 0, 0)}, task.Times)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			task, err := Compile("grp", tc.d)
			if tc.invalid {
				var spec *InvalidSpecError
				require.ErrorAs(t, err, &spec)
				assert.Equal(t, "grp.x", spec.Task)
				return
			}
			require.NoError(t, err)
			tc.check(t, task)
		})
	}

	_, err := Compile("grp", Descriptor{Name: "nil", Seconds: 1})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestNearestTime(t *testing.T) {
	t.Parallel()

	times := []Clock{NewClock(9, 0, 0), NewClock(21, 0, 0)}
	tests := []struct {
		now, want Clock
	}{
		{NewClock(20, 0, 0), NewClock(21, 0, 0)},
		{NewClock(22, 0, 0), NewClock(9, 0, 0)},
		{NewClock(8, 59, 59), NewClock(9, 0, 0)},
		{NewClock(9, 0, 0), NewClock(21, 0, 0)},
		{NewClock(21, 0, 0), NewClock(9, 0, 0)},
		{NewClock(0, 0, 0), NewClock(9, 0, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.now.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NearestTime(times, tc.now))
		})
	}
}

func TestNextRun(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	times := []Clock{NewClock(9, 0, 0), NewClock(21, 0, 0)}

	got := NextRun(times, time.Date(2024, 3, 10, 20, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 10, 21, 0, 0, 0, loc), got)

	got = NextRun(times, time.Date(2024, 12, 31, 22, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, loc), got)

	got = NextRun(times, time.Date(2024, 3, 10, 21, 0, 0, 500, loc))
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, loc), got)
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	c, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, "07:05", c.String())

	c, err = ParseClock("23:59:58")
	require.NoError(t, err)
	assert.Equal(t, "23:59:58", c.String())

	_, err = ParseClock("7pm")
	assert.Error(t, err)
}

func mustCompile(t *testing.T, d Descriptor) Task {
	t.Helper()
	task, err := Compile("test", d)
	require.NoError(t, err)
	return task
}

func TestIntervalTaskKeepsRunningAfterFailures(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, logx.Nop())
	var runs atomic.Int32
	s.Add(mustCompile(t, Descriptor{Name: "flaky", Milliseconds: 2, Run: func(context.Context) error {
		n := runs.Add(1)
		switch n {
		case 1:
			return errors.New("first run fails")
		case 2:
			panic("second run panics")
		}
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool { return runs.Load() >= 5 }, 2*time.Second, time.Millisecond)
}

func TestStopClearsAndStartUsesFreshRegistrations(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, logx.Nop())
	var old, fresh atomic.Int32
	s.Add(mustCompile(t, Descriptor{Name: "old", Milliseconds: 1, Run: func(context.Context) error { old.Add(1); return nil }}))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return old.Load() > 0 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	assert.Empty(t, s.Snapshot())
	time.Sleep(10 * time.Millisecond)
	stopped := old.Load()

	s.Add(mustCompile(t, Descriptor{Name: "fresh", Milliseconds: 1, Run: func(context.Context) error { fresh.Add(1); return nil }}))
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool { return fresh.Load() > 0 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, old.Load())
}

func TestAddWhileRunningStartsImmediately(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	ran := make(chan struct{}, 1)
	s.Add(mustCompile(t, Descriptor{Name: "late", Minutes: 10, Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task added while running did not start")
	}
}

func TestClockTaskRunsAtConfiguredTime(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	at := time.Now().In(loc).Add(time.Second)
	if ClockOf(at) < ClockOf(time.Now().In(loc)) {
		t.Skip("too close to midnight")
	}

	s := New(loc, logx.Nop())
	ran := make(chan struct{}, 1)
	s.Add(mustCompile(t, Descriptor{Name: "soon", Times: []string{ClockOf(at).String()}, Run: func(context.Context) error {
		ran <- struct{}{}
		return nil
	}}))
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "clock", snap[0].Kind)
	assert.False(t, snap[0].Next.IsZero())

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("clock task did not run")
	}
}
