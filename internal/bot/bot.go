// Package bot ties the command registry, dispatcher, event waiter, button
// registry and task scheduler into one instance the transport talks to.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"relaybot/internal/button"
	"relaybot/internal/command"
	"relaybot/internal/dispatch"
	"relaybot/internal/event"
	"relaybot/internal/eventwait"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/task/scheduler"
	logx "relaybot/pkg/logx"
)

// ErrorHook receives runtime dispatch errors. ev is the event being handled.
type ErrorHook func(ctx context.Context, ev event.Event, err error)

// Publisher pushes structured command definitions to the chat platform.
type Publisher interface {
	PublishCommands(ctx context.Context, cmds []*command.Meta) error
}

// Options configure a Bot. A negative ButtonTimeout never expires buttons and
// a non-positive CommandTimeout gives handlers no deadline.
type Options struct {
	Prefix            string
	Location          *time.Location
	DeniedMessage     string
	NotOwnerMessage   string
	ButtonTimeout     time.Duration
	CommandTimeout    time.Duration
	AutocompleteLimit int
	Workers           int
	OnError           ErrorHook
	// Publisher, when set, receives the structured commands on every ready.
	Publisher Publisher
}

// Settings are the options that may change while the bot runs.
type Settings struct {
	Location          *time.Location
	DeniedMessage     string
	NotOwnerMessage   string
	ButtonTimeout     time.Duration
	CommandTimeout    time.Duration
	AutocompleteLimit int
}

type Bot struct {
	log     logx.Logger
	sup     *supervisor.Supervisor
	reg     *command.Registry
	disp    *dispatch.Dispatcher
	waiter  *eventwait.Waiter
	buttons *button.Registry
	sched   *scheduler.Scheduler
	onError ErrorHook
	workers int
	pub     Publisher

	closeOnce sync.Once
}

// New builds a bot whose background jobs live until ctx ends or Close is called.
func New(ctx context.Context, opts Options, log logx.Logger) (*Bot, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	sched := scheduler.New(opts.Location, log)
	reg, err := command.NewRegistry(opts.Prefix, sched)
	if err != nil {
		return nil, err
	}
	sup := supervisor.New(ctx, supervisor.WithLogger(log.With(logx.String("comp", "supervisor"))))

	b := &Bot{
		log:     log.With(logx.String("comp", "bot")),
		sup:     sup,
		reg:     reg,
		waiter:  eventwait.New(sup, log),
		buttons: button.NewRegistry(sup, log, button.Options{}),
		sched:   sched,
		onError: opts.OnError,
		workers: max(1, opts.Workers),
		pub:     opts.Publisher,
	}
	b.disp = dispatch.New(reg, log, dispatch.Options{})
	if b.onError == nil {
		b.onError = DefaultErrorHook(log)
	}
	b.Apply(Settings{
		Location:          opts.Location,
		DeniedMessage:     opts.DeniedMessage,
		NotOwnerMessage:   opts.NotOwnerMessage,
		ButtonTimeout:     opts.ButtonTimeout,
		CommandTimeout:    opts.CommandTimeout,
		AutocompleteLimit: opts.AutocompleteLimit,
	})
	return b, nil
}

func (b *Bot) Registry() *command.Registry     { return b.reg }
func (b *Bot) Waiter() *eventwait.Waiter       { return b.waiter }
func (b *Bot) Buttons() *button.Registry       { return b.buttons }
func (b *Bot) Scheduler() *scheduler.Scheduler { return b.sched }

// Apply updates runtime settings, typically after a config reload.
func (b *Bot) Apply(s Settings) {
	b.disp.SetOptions(dispatch.Options{
		DeniedMessage:     s.DeniedMessage,
		Timeout:           s.CommandTimeout,
		AutocompleteLimit: s.AutocompleteLimit,
	})
	b.buttons.SetOptions(button.Options{
		DefaultTimeout:  s.ButtonTimeout,
		NotOwnerMessage: s.NotOwnerMessage,
	})
	b.sched.SetLocation(s.Location)
}

// GetCommands returns all registered command metadata.
func (b *Bot) GetCommands() []*command.Meta { return b.reg.Commands() }

// RegisterCommands registers a command group with its tasks and ready hook.
func (b *Bot) RegisterCommands(g command.Group) error {
	if err := b.reg.Register(g); err != nil {
		return err
	}
	b.log.Debug("command group registered", logx.String("group", g.Name()))
	return nil
}

// PublishCommands sends the structured and hybrid commands to the platform.
func (b *Bot) PublishCommands(ctx context.Context, p Publisher) error {
	var cmds []*command.Meta
	for _, m := range b.reg.Commands() {
		if m.Structured() {
			cmds = append(cmds, m)
		}
	}
	if err := p.PublishCommands(ctx, cmds); err != nil {
		return err
	}
	b.log.Info("structured commands published", logx.Int("count", len(cmds)))
	return nil
}

func (b *Bot) StartTasks(ctx context.Context) { b.sched.Start(ctx) }
func (b *Bot) StopTasks()                     { b.sched.Stop() }

// HandleRawMessage routes a chat message. Messages from bots and messages
// without the prefix are ignored.
func (b *Bot) HandleRawMessage(ctx context.Context, m *event.Message) error {
	if m.Author.Bot || !strings.HasPrefix(strings.TrimSpace(m.Content), b.reg.Prefix()) {
		return nil
	}
	return b.disp.HandleMessage(ctx, m)
}

func (b *Bot) HandleStructuredCommand(ctx context.Context, s *event.SlashCommand) error {
	return b.disp.HandleSlash(ctx, s)
}

func (b *Bot) HandleAutocomplete(ctx context.Context, a *event.Autocomplete) error {
	_, err := b.disp.HandleAutocomplete(ctx, a)
	return err
}

func (b *Bot) HandleButtonInteraction(ctx context.Context, c *event.ButtonClick) error {
	return b.buttons.Dispatch(ctx, c)
}

// OnReady runs group ready hooks in registration order, publishes structured
// commands when a publisher is set and then starts the tasks under the bot's
// lifetime context.
func (b *Bot) OnReady(ctx context.Context, r *event.Ready) {
	b.log.Info("session ready", logx.String("user", r.Username), logx.Int("guilds", r.Guilds))
	for _, h := range b.reg.Hooks() {
		if err := h.Run(ctx); err != nil {
			b.log.Warn("ready hook failed", logx.String("group", h.Group), logx.Err(err))
		}
	}
	if b.pub != nil {
		if err := b.PublishCommands(ctx, b.pub); err != nil {
			b.log.Error("publishing commands failed", logx.Err(err))
		}
	}
	b.StartTasks(b.sup.Context())
}

// OnShutdown stops tasks, drops pending waiters and forgets active buttons.
func (b *Bot) OnShutdown(r *event.Shutdown) {
	b.log.Info("session shutting down", logx.String("reason", r.Reason))
	b.StopTasks()
	b.waiter.Close()
	b.buttons.Clear()
}

// HandleEvent offers ev to the waiter and then routes it. Errors go to the
// error hook.
func (b *Bot) HandleEvent(ctx context.Context, ev event.Event) {
	b.waiter.Dispatch(ev)

	var err error
	switch e := ev.(type) {
	case *event.Ready:
		b.OnReady(ctx, e)
	case *event.Shutdown:
		b.OnShutdown(e)
	case *event.Message:
		err = b.HandleRawMessage(ctx, e)
	case *event.SlashCommand:
		err = b.HandleStructuredCommand(ctx, e)
	case *event.Autocomplete:
		err = b.HandleAutocomplete(ctx, e)
	case *event.ButtonClick:
		err = b.HandleButtonInteraction(ctx, e)
	}
	if err != nil {
		b.onError(ctx, ev, err)
	}
}

// Run handles events from in with a fixed number of workers until ctx ends
// or in is closed.
func (b *Bot) Run(ctx context.Context, in <-chan event.Event) error {
	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-in:
					if !ok {
						return
					}
					b.HandleEvent(ctx, ev)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close tears everything down and waits for background jobs.
func (b *Bot) Close(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		b.StopTasks()
		b.waiter.Close()
		err = b.sup.Stop(ctx)
		b.buttons.Clear()
	})
	return err
}

// DefaultErrorHook ignores unknown commands and logs everything else.
func DefaultErrorHook(log logx.Logger) ErrorHook {
	log = log.With(logx.String("comp", "bot"))
	return func(_ context.Context, ev event.Event, err error) {
		var (
			notFound *command.NotFoundError
			failed   *command.FailedError
			btnMiss  *button.ActionNotFoundError
		)
		switch {
		case errors.As(err, &notFound):
			log.Trace("unknown command", logx.String("name", notFound.Name))
		case errors.As(err, &failed):
			log.Error("command failed", logx.String("cmd", failed.Command), logx.String("group", failed.Group), logx.Err(failed.Err))
		case errors.As(err, &btnMiss):
			log.Debug("click on unknown or expired button", logx.String("id", btnMiss.ID))
		default:
			log.Warn("event handling failed", logx.String("kind", ev.Kind().String()), logx.Err(err))
		}
	}
}
