// Package dispatch routes command triggers to registered handlers.
package dispatch

import (
	"context"
	"sync"
	"time"

	"relaybot/internal/command"
	"relaybot/internal/event"
	logx "relaybot/pkg/logx"
)

type Options struct {
	// DeniedMessage is sent when the invoker lacks a command's permission.
	DeniedMessage string
	// Timeout bounds each handler call through its context. Zero disables it.
	Timeout time.Duration
	// AutocompleteLimit caps suggestion lists (Discord allows 25).
	AutocompleteLimit int
	// Middleware runs inside panic recovery and logging, outside the timeout.
	Middleware []Middleware
}

type Dispatcher struct {
	reg *command.Registry
	log logx.Logger

	mu   sync.RWMutex
	opts Options
}

func New(reg *command.Registry, log logx.Logger, opts Options) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{reg: reg, log: log.With(logx.String("comp", "dispatch")), opts: opts}
}

// SetOptions swaps options at runtime (config reload).
func (d *Dispatcher) SetOptions(opts Options) {
	d.mu.Lock()
	d.opts = opts
	d.mu.Unlock()
}

func (d *Dispatcher) options() Options {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.opts
}

// HandleMessage routes a prefix message by its first word. The caller is
// expected to have checked the prefix already.
func (d *Dispatcher) HandleMessage(ctx context.Context, m *event.Message) error {
	trigger := m.Trigger()
	meta, ok := d.reg.LookupPrefix(trigger)
	if !ok {
		return &command.NotFoundError{Name: trigger}
	}
	return d.invoke(ctx, meta, m)
}

func (d *Dispatcher) HandleSlash(ctx context.Context, s *event.SlashCommand) error {
	meta, ok := d.reg.LookupStructured(s.Name)
	if !ok {
		return &command.NotFoundError{Name: s.Name}
	}
	return d.invoke(ctx, meta, s)
}

// HandleAutocomplete answers a suggestion request and returns what was sent.
// An empty answer is still sent so the client stops waiting.
func (d *Dispatcher) HandleAutocomplete(ctx context.Context, a *event.Autocomplete) ([]string, error) {
	choices := d.reg.Suggest(a.Command, a.Focused, a.Value, d.options().AutocompleteLimit)
	if choices == nil {
		choices = []string{}
	}
	return choices, a.Suggest(ctx, choices)
}

func (d *Dispatcher) invoke(ctx context.Context, meta *command.Meta, inv event.Invocation) error {
	opts := d.options()

	if meta.Permission != event.PermissionNone && !inv.HasPermission(meta.Permission) {
		msg := meta.DeniedMessage
		if msg == "" {
			msg = opts.DeniedMessage
		}
		d.log.Debug("permission denied",
			logx.String("cmd", meta.Name),
			logx.String("user_id", inv.User().ID),
			logx.String("need", meta.Permission.String()),
		)
		if msg != "" {
			if err := inv.Reply(ctx, msg); err != nil {
				d.log.Warn("denial reply failed", logx.String("cmd", meta.Name), logx.Err(err))
			}
		}
		return nil
	}

	mw := make([]Middleware, 0, len(opts.Middleware)+3)
	mw = append(mw, Recover(d.log), RequestLog(d.log, meta))
	mw = append(mw, opts.Middleware...)
	mw = append(mw, Timeout(opts.Timeout))

	if err := Chain(meta.Handler, mw...)(ctx, inv); err != nil {
		return &command.FailedError{Command: meta.Name, Group: meta.Group, Err: err}
	}
	return nil
}
