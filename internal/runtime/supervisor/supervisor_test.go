package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicIsContainedToItsJob(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	var ticks atomic.Int32
	sibling := s.Go("sibling", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
				ticks.Add(1)
			}
		}
	})
	bad := s.Go("bad", func(ctx context.Context) error { panic("boom") })

	<-bad.Done()
	require.Eventually(t, func() bool { return ticks.Load() > 3 }, time.Second, time.Millisecond)
	select {
	case <-sibling.Done():
		t.Fatal("sibling stopped after a panic elsewhere")
	default:
	}

	var badStats JobStats
	for _, st := range s.Snapshot() {
		if st.Name == "bad" {
			badStats = st
		}
	}
	assert.EqualValues(t, 1, badStats.Panics)
	assert.Contains(t, badStats.LastErr, "boom")
}

func TestJobCancelIsIndependent(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	block := func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
	a := s.Go("a", block)
	b := s.Go("b", block)

	a.Cancel()
	<-a.Done()
	select {
	case <-b.Done():
		t.Fatal("cancelling one job stopped another")
	default:
	}
	assert.EqualValues(t, 1, s.Counters().Active)
}

func TestAfter(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	var fired atomic.Int32
	s.After("fires", 5*time.Millisecond, func(context.Context) { fired.Add(1) })
	cancelled := s.After("cancelled", 50*time.Millisecond, func(context.Context) { fired.Add(100) })
	cancelled.Cancel()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	<-cancelled.Done()
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, fired.Load())
}

func TestStopWaitsAndRejectsNewJobs(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	assert.False(t, s.Stopped())
	var exited atomic.Bool
	s.Go("worker", func(ctx context.Context) error {
		<-ctx.Done()
		exited.Store(true)
		return nil
	})
	s.Go("failing", func(context.Context) error { return errors.New("nope") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, exited.Load())
	assert.True(t, s.Stopped())

	var ran atomic.Bool
	late := s.Go("late", func(context.Context) error { ran.Store(true); return nil })
	<-late.Done()
	assert.False(t, ran.Load())
}
