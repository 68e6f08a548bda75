// Package supervisor runs named background jobs under a shared context.
//
// Every job gets its own cancel handle, panics are contained to the job that
// raised them, and Stop waits for everything to drain.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	logx "relaybot/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	started uint64
	active  int64

	log      logx.Logger
	wg       sync.WaitGroup
	doneOnce sync.Once
	doneCh   chan struct{}

	mu      sync.Mutex
	stopped bool
	stats   map[string]*JobStats
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// Counters are best-effort operational signals, not a synchronization primitive.
type Counters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
}

// JobStats aggregates every job started under the same name.
type JobStats struct {
	Name        string        `json:"name"`
	Active      int64         `json:"active"`
	Started     uint64        `json:"started"`
	Panics      uint64        `json:"panics"`
	LastErr     string        `json:"last_err,omitempty"`
	LastStartAt time.Time     `json:"last_start_at"`
	LastRuntime time.Duration `json:"last_runtime"`
}

// Job is a handle to one background job.
type Job struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

func (j *Job) Name() string { return j.name }

// Cancel asks the job to stop. It does not wait; use Done for that.
func (j *Job) Cancel() {
	if j != nil && j.cancel != nil {
		j.cancel()
	}
}

// Done is closed once the job function has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
		stats:  map[string]*JobStats{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Go starts fn in its own goroutine. fn receives a context that is cancelled by
// Job.Cancel or by stopping the supervisor. After Stop, Go returns a finished
// job without running fn.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) *Job {
	ctx, cancel := context.WithCancel(s.ctx)
	job := &Job{name: name, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.stopped || fn == nil {
		s.mu.Unlock()
		cancel()
		close(job.done)
		return job
	}
	s.wg.Add(1)
	s.mu.Unlock()

	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	go func() {
		defer s.wg.Done()
		defer close(job.done)
		defer cancel()
		defer atomic.AddInt64(&s.active, -1)

		startedAt := s.noteStart(name)
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s: %v", name, r)
				s.log.Error("job panicked", logx.String("job", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				s.notePanic(name)
			}
			s.noteStop(name, startedAt, err)
		}()

		err = fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("job returned error", logx.String("job", name), logx.Err(err))
		} else {
			err = nil
		}
	}()
	return job
}

// After runs fn once d has elapsed, unless the job is cancelled first.
func (s *Supervisor) After(name string, d time.Duration, fn func(ctx context.Context)) *Job {
	return s.Go(name, func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		fn(ctx)
		return nil
	})
}

// Cancel stops accepting jobs and cancels the running ones without waiting.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// Stopped reports whether the supervisor no longer accepts jobs.
func (s *Supervisor) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop cancels every job and waits for them to return or for ctx to expire.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.Cancel()
	return s.Wait(ctx)
}

func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return nil
	}
}

func (s *Supervisor) Counters() Counters {
	return Counters{
		Active:  atomic.LoadInt64(&s.active),
		Started: atomic.LoadUint64(&s.started),
	}
}

// Snapshot lists per-name stats, active jobs first.
func (s *Supervisor) Snapshot() []JobStats {
	s.mu.Lock()
	out := make([]JobStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Active != out[j].Active {
			return out[i].Active > out[j].Active
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Supervisor) statsLocked(name string) *JobStats {
	st := s.stats[name]
	if st == nil {
		st = &JobStats{Name: name}
		s.stats[name] = st
	}
	return st
}

func (s *Supervisor) noteStart(name string) time.Time {
	now := time.Now()
	s.mu.Lock()
	st := s.statsLocked(name)
	st.Started++
	st.Active++
	st.LastStartAt = now
	s.mu.Unlock()
	return now
}

func (s *Supervisor) noteStop(name string, startedAt time.Time, err error) {
	s.mu.Lock()
	st := s.statsLocked(name)
	if st.Active > 0 {
		st.Active--
	}
	st.LastRuntime = time.Since(startedAt)
	if err != nil {
		st.LastErr = err.Error()
	}
	s.mu.Unlock()
}

func (s *Supervisor) notePanic(name string) {
	s.mu.Lock()
	s.statsLocked(name).Panics++
	s.mu.Unlock()
}
