// Package eventwait lets handlers wait for a future event that matches a
// predicate, with an optional timeout.
//
// For every registration exactly one of the match action or the timeout action
// runs: both paths race to remove the registration and only the winner fires.
package eventwait

import (
	"context"
	"errors"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"relaybot/internal/event"
	"relaybot/internal/runtime/supervisor"
	logx "relaybot/pkg/logx"
)

var ErrClosed = errors.New("eventwait: waiter is closed")

type Waiter struct {
	log logx.Logger
	sup *supervisor.Supervisor
	seq atomic.Uint64

	mu     sync.Mutex
	sets   map[event.Kind]map[uuid.UUID]*entry
	closed bool
}

type entry struct {
	id        uuid.UUID
	seq       uint64
	kind      event.Kind
	match     func(event.Event) bool
	action    func(event.Event)
	onTimeout func()
	timer     *supervisor.Job
	fired     chan struct{}
}

// Handle refers to one registration.
type Handle struct {
	w     *Waiter
	id    uuid.UUID
	kind  event.Kind
	fired chan struct{}
}

// ID identifies the registration in logs.
func (h *Handle) ID() string { return h.id.String() }

// Cancel removes the registration. It reports false when the match or timeout
// action already won.
func (h *Handle) Cancel() bool {
	e := h.w.remove(h.kind, h.id)
	if e == nil {
		return false
	}
	e.timer.Cancel()
	close(e.fired)
	return true
}

// Done is closed once the registration is resolved by match, timeout, Cancel
// or Close.
func (h *Handle) Done() <-chan struct{} { return h.fired }

// New creates a waiter whose timeout timers run under sup.
func New(sup *supervisor.Supervisor, log logx.Logger) *Waiter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Waiter{
		log:  log.With(logx.String("comp", "eventwait")),
		sup:  sup,
		sets: map[event.Kind]map[uuid.UUID]*entry{},
	}
}

type Option func(*entry, *time.Duration)

// WithTimeout removes the registration after d and then calls onTimeout,
// which may be nil.
func WithTimeout(d time.Duration, onTimeout func()) Option {
	return func(e *entry, timeout *time.Duration) {
		*timeout = d
		e.onTimeout = onTimeout
	}
}

// Await registers action to run on the first event of kind (or a narrower
// kind) that is a T and satisfies match. A nil match accepts every event.
func Await[T event.Event](w *Waiter, kind event.Kind, match func(T) bool, action func(T), opts ...Option) (*Handle, error) {
	e := &entry{
		kind: kind,
		match: func(ev event.Event) bool {
			t, ok := ev.(T)
			if !ok {
				return false
			}
			return match == nil || match(t)
		},
		action: func(ev event.Event) {
			if action != nil {
				action(ev.(T))
			}
		},
	}
	var timeout time.Duration
	for _, o := range opts {
		o(e, &timeout)
	}
	return w.add(e, timeout)
}

// Next blocks until a matching event arrives, the timeout passes or ctx ends.
// A timeout returns context.DeadlineExceeded.
func Next[T event.Event](ctx context.Context, w *Waiter, kind event.Kind, match func(T) bool, timeout time.Duration) (T, error) {
	var zero T
	got := make(chan T, 1)
	expired := make(chan struct{})

	var opts []Option
	if timeout > 0 {
		opts = append(opts, WithTimeout(timeout, func() { close(expired) }))
	}
	h, err := Await(w, kind, match, func(ev T) { got <- ev }, opts...)
	if err != nil {
		return zero, err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		if h.Cancel() {
			return zero, ctx.Err()
		}
		// Lost the race to a match or the timeout; wait for it to finish.
		<-h.Done()
	}
	select {
	case ev := <-got:
		return ev, nil
	default:
	}
	select {
	case <-expired:
		return zero, context.DeadlineExceeded
	default:
	}
	return zero, ErrClosed
}

func (w *Waiter) add(e *entry, timeout time.Duration) (*Handle, error) {
	e.id = uuid.New()
	e.seq = w.seq.Add(1)
	e.fired = make(chan struct{})
	h := &Handle{w: w, id: e.id, kind: e.kind, fired: e.fired}

	wrapAction := e.action
	e.action = func(ev event.Event) {
		defer close(e.fired)
		wrapAction(ev)
	}
	wrapTimeout := e.onTimeout
	e.onTimeout = func() {
		defer close(e.fired)
		if wrapTimeout != nil {
			wrapTimeout()
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	set := w.sets[e.kind]
	if set == nil {
		set = map[uuid.UUID]*entry{}
		w.sets[e.kind] = set
	}
	set[e.id] = e
	if timeout > 0 {
		e.timer = w.sup.After("eventwait.timeout", timeout, func(context.Context) {
			if w.remove(e.kind, e.id) != nil {
				w.safely("timeout", e.kind, e.onTimeout)
			}
		})
	}
	w.mu.Unlock()
	return h, nil
}

// remove is the single check-and-delete both firing paths go through.
func (w *Waiter) remove(kind event.Kind, id uuid.UUID) *entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := w.sets[kind]
	e, ok := set[id]
	if !ok {
		return nil
	}
	delete(set, id)
	if len(set) == 0 {
		delete(w.sets, kind)
	}
	return e
}

// Dispatch offers ev to every waiter registered for its kind or a broader one.
// Callbacks run on the calling goroutine and may register new waiters.
func (w *Waiter) Dispatch(ev event.Event) {
	if ev == nil {
		return
	}
	for _, kind := range ev.Kind().Lineage() {
		for _, e := range w.snapshot(kind) {
			matched := false
			w.safely("predicate", kind, func() { matched = e.match(ev) })
			if !matched {
				continue
			}
			if w.remove(kind, e.id) == nil {
				continue
			}
			e.timer.Cancel()
			w.safely("action", kind, func() { e.action(ev) })
		}
	}
}

func (w *Waiter) snapshot(kind event.Kind) []*entry {
	w.mu.Lock()
	set := w.sets[kind]
	out := make([]*entry, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	w.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Pending counts live registrations for kind exactly (not its narrower kinds).
func (w *Waiter) Pending(kind event.Kind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sets[kind])
}

// Close drops every registration without firing it, cancels their timers and
// rejects further registrations.
func (w *Waiter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	sets := w.sets
	w.sets = map[event.Kind]map[uuid.UUID]*entry{}
	w.mu.Unlock()

	n := 0
	for _, set := range sets {
		for _, e := range set {
			e.timer.Cancel()
			close(e.fired)
			n++
		}
	}
	w.log.Debug("waiter closed", logx.Int("dropped", n))
}

func (w *Waiter) safely(stage string, kind event.Kind, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("waiter callback panicked",
				logx.String("stage", stage),
				logx.String("kind", kind.String()),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}
