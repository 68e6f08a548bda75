package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"relaybot/internal/runtime/supervisor"
	logx "relaybot/pkg/logx"
)

// Scheduler holds registered tasks and, between Start and Stop, runs them.
type Scheduler struct {
	log logx.Logger

	mu      sync.Mutex
	loc     *time.Location
	tasks   []Task
	running bool
	parent  context.Context
	sup     *supervisor.Supervisor
	c       *cron.Cron
	entries map[string]cron.EntryID
}

// Info describes one registered task.
type Info struct {
	Name  string        `json:"name"`
	Kind  string        `json:"kind"`
	Every time.Duration `json:"every,omitempty"`
	Times []string      `json:"times,omitempty"`
	Next  time.Time     `json:"next,omitempty"`
}

func New(loc *time.Location, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		log:     log.With(logx.String("comp", "scheduler")),
		loc:     loc,
		entries: map[string]cron.EntryID{},
	}
}

// Add registers a validated task. While running it starts right away.
func (s *Scheduler) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
	if s.running {
		s.launchLocked(t)
	}
}

// Start runs every registered task until ctx ends or Stop is called.
// Calling Start again restarts all tasks.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.haltLocked()
	}
	s.parent = ctx
	s.startLocked()
}

// Stop cancels every task job and forgets all registered tasks. Handlers
// already running are not interrupted beyond their context being cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.haltLocked()
	}
	s.tasks = nil
	s.log.Info("scheduler stopped")
}

// SetLocation changes the time zone for clock-time tasks, restarting them
// when the scheduler is running.
func (s *Scheduler) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc.String() == loc.String() {
		return
	}
	s.loc = loc
	if s.running {
		s.haltLocked()
		s.startLocked()
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) startLocked() {
	cl := cronLogger{log: s.log}
	s.sup = supervisor.New(s.parent, supervisor.WithLogger(s.log))
	s.c = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.entries = map[string]cron.EntryID{}
	for _, t := range s.tasks {
		s.launchLocked(t)
	}
	s.c.Start()
	s.running = true
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("tasks", len(s.tasks)))
}

func (s *Scheduler) haltLocked() {
	s.c.Stop()
	s.sup.Cancel()
	s.c = nil
	s.sup = nil
	s.entries = map[string]cron.EntryID{}
	s.running = false
}

func (s *Scheduler) launchLocked(t Task) {
	switch t.Kind {
	case KindInterval:
		s.sup.Go("task:"+t.Name, func(ctx context.Context) error {
			timer := time.NewTimer(0)
			defer timer.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-timer.C:
				}
				s.invoke(ctx, t)
				timer.Reset(t.Every)
			}
		})
		s.log.Debug("interval task scheduled", logx.String("task", t.Name), logx.Duration("every", t.Every))
	case KindClock:
		ctx := s.sup.Context()
		id := s.c.Schedule(clockSchedule{times: t.Times}, cron.FuncJob(func() { s.invoke(ctx, t) }))
		s.entries[t.Name] = id
		s.log.Debug("clock task scheduled", logx.String("task", t.Name), logx.Strings("times", clockStrings(t.Times)))
	}
}

// invoke runs one tick. Failures are logged so the task keeps its schedule.
func (s *Scheduler) invoke(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", logx.String("task", t.Name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	if err := t.Run(ctx); err != nil {
		s.log.Warn("task failed", logx.String("task", t.Name), logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Trace("task ran", logx.String("task", t.Name), logx.Duration("took", time.Since(start)))
}

// Snapshot lists registered tasks sorted by name. Next is only filled in for
// clock-time tasks.
func (s *Scheduler) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := Info{Name: t.Name, Kind: t.Kind.String(), Every: t.Every}
		if t.Kind == KindClock {
			info.Times = clockStrings(t.Times)
			if id, ok := s.entries[t.Name]; ok && s.c != nil {
				info.Next = s.c.Entry(id).Next
			}
			if info.Next.IsZero() {
				info.Next = NextRun(t.Times, time.Now().In(s.loc))
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func clockStrings(times []Clock) []string {
	out := make([]string, len(times))
	for i, c := range times {
		out[i] = c.String()
	}
	return out
}

// cronLogger feeds robfig/cron's logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
