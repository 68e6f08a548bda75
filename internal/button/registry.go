// Package button tracks the interactive buttons the bot has sent and expires
// them after a timeout.
package button

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"relaybot/internal/event"
	"relaybot/internal/runtime/supervisor"
	logx "relaybot/pkg/logx"
)

const maxIDLength = 100

type Style int

const (
	StylePrimary Style = iota
	StyleSecondary
	StyleSuccess
	StyleDanger
	StyleLink
)

type ClickFunc func(ctx context.Context, click *event.ButtonClick) error

type Button struct {
	ID       string
	Label    string
	Emoji    string
	URL      string
	Style    Style
	Disabled bool
	// OwnerID restricts clicks to one user when set.
	OwnerID string
	// Timeout of zero uses the registry default; negative never expires.
	Timeout   time.Duration
	OnClick   ClickFunc
	OnTimeout func()
}

// IsLink reports whether the button opens a URL instead of calling back.
func (b *Button) IsLink() bool { return b.URL != "" || b.Style == StyleLink }

type Options struct {
	DefaultTimeout  time.Duration
	NotOwnerMessage string
}

type Registry struct {
	sup *supervisor.Supervisor
	log logx.Logger

	mu      sync.Mutex
	opts    Options
	entries map[string]*slot
}

type slot struct {
	btn   *Button
	timer *supervisor.Job
}

func NewRegistry(sup *supervisor.Supervisor, log logx.Logger, opts Options) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		sup:     sup,
		log:     log.With(logx.String("comp", "button")),
		opts:    opts,
		entries: map[string]*slot{},
	}
}

// SetOptions applies to buttons registered afterwards.
func (r *Registry) SetOptions(opts Options) {
	r.mu.Lock()
	r.opts = opts
	r.mu.Unlock()
}

func validate(b *Button) error {
	switch {
	case b.ID == "":
		return ErrEmptyID
	case len(b.ID) > maxIDLength:
		return ErrIDTooLong
	case b.IsLink() && b.OnClick != nil:
		return ErrLinkWithAction
	case !b.IsLink() && b.OnClick == nil:
		return ErrNoAction
	}
	return nil
}

// Register activates b and arms its timeout. It fails with ErrClosed once
// the supervisor that runs the timeouts has been stopped.
func (r *Registry) Register(b *Button) error {
	if err := validate(b); err != nil {
		return fmt.Errorf("%s: %w", b.ID, err)
	}
	if r.sup.Stopped() {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.entries[b.ID]; taken {
		return &ExistsError{ID: b.ID}
	}
	s := &slot{btn: b}
	r.entries[b.ID] = s

	d := b.Timeout
	if d == 0 {
		d = r.opts.DefaultTimeout
	}
	if d > 0 {
		s.timer = r.sup.After("button.timeout", d, func(context.Context) { r.expire(s) })
	}
	return nil
}

// expire runs the timeout hook and then drops the button, unless it was
// replaced or removed in the meantime.
func (r *Registry) expire(s *slot) {
	r.mu.Lock()
	current := r.entries[s.btn.ID] == s
	r.mu.Unlock()
	if !current {
		return
	}

	if s.btn.OnTimeout != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("button timeout hook panicked", logx.String("id", s.btn.ID), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
				}
			}()
			s.btn.OnTimeout()
		}()
	}

	r.mu.Lock()
	if r.entries[s.btn.ID] == s {
		delete(r.entries, s.btn.ID)
	}
	r.mu.Unlock()
	r.log.Debug("button expired", logx.String("id", s.btn.ID))
}

// Unregister removes id and cancels its timeout. Unknown ids are ignored.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	s, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if ok {
		s.timer.Cancel()
	}
	return ok
}

func (r *Registry) Get(id string) (*Button, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return s.btn, true
}

// All returns the active buttons ordered by id.
func (r *Registry) All() []*Button {
	r.mu.Lock()
	out := make([]*Button, 0, len(r.entries))
	for _, s := range r.entries {
		out = append(out, s.btn)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear unregisters everything without running timeout hooks.
func (r *Registry) Clear() {
	r.mu.Lock()
	entries := r.entries
	r.entries = map[string]*slot{}
	r.mu.Unlock()
	for _, s := range entries {
		s.timer.Cancel()
	}
}

// Dispatch runs the click handler of the button named by click.CustomID.
// Clicks by someone other than the owner get a short reply and are not
// treated as errors.
func (r *Registry) Dispatch(ctx context.Context, click *event.ButtonClick) error {
	r.mu.Lock()
	s, ok := r.entries[click.CustomID]
	notOwner := r.opts.NotOwnerMessage
	r.mu.Unlock()
	if !ok || s.btn.OnClick == nil {
		return &ActionNotFoundError{ID: click.CustomID}
	}
	b := s.btn

	if b.OwnerID != "" && click.Invoker.ID != b.OwnerID {
		r.log.Debug("button click by non-owner", logx.String("id", b.ID), logx.String("user_id", click.Invoker.ID))
		if notOwner != "" {
			if err := click.Reply(ctx, notOwner); err != nil {
				r.log.Warn("non-owner reply failed", logx.String("id", b.ID), logx.Err(err))
			}
		}
		return nil
	}

	if err := r.call(ctx, b, click); err != nil {
		return &ActionFailedError{ID: b.ID, Err: err}
	}
	return nil
}

func (r *Registry) call(ctx context.Context, b *Button, click *event.ButtonClick) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("button handler panicked", logx.String("id", b.ID), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return b.OnClick(ctx, click)
}
