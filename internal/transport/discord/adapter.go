// Package discord connects the bot to a Discord gateway session. It turns
// gateway events into event values and implements replies, suggestions,
// command publishing and plain channel sends on top of discordgo.
package discord

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"relaybot/internal/button"
	"relaybot/internal/command"
	"relaybot/internal/event"
	"relaybot/internal/runtime/supervisor"
	logx "relaybot/pkg/logx"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages |
	discordgo.IntentMessageContent

type Config struct {
	Token string
	// GuildID scopes published commands to one guild. Empty publishes globally.
	GuildID string
}

type Adapter struct {
	cfg Config
	log logx.Logger
	s   *discordgo.Session

	out     atomic.Value // chan<- event.Event
	dropped atomic.Uint64

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	publishMu   sync.Mutex
	publishHash uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + strings.TrimSpace(cfg.Token))
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = intents
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log.With(logx.String("comp", "discord")), s: s}
	var nilOut chan<- event.Event
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.emit(readyEvent(r))
	})
	a.s.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		a.log.Warn("gateway disconnected")
	})
	a.s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Message == nil || m.Author == nil {
			return
		}
		if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
			return
		}
		a.emit(messageEvent(m.Message, &messageSource{a: a, channelID: m.ChannelID, userID: m.Author.ID}))
	})
	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		a.onReaction(r.MessageReaction, true)
	})
	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
		a.onReaction(r.MessageReaction, false)
	})
	a.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Interaction == nil {
			return
		}
		i := ic.Interaction
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			a.emit(slashEvent(i, &interactionSource{a: a, i: i}))
		case discordgo.InteractionApplicationCommandAutocomplete:
			a.emit(autocompleteEvent(i, &suggester{a: a, i: i}))
		case discordgo.InteractionMessageComponent:
			if i.MessageComponentData().ComponentType == discordgo.ButtonComponent {
				a.emit(clickEvent(i, &interactionSource{a: a, i: i}))
			}
		}
	})
}

func (a *Adapter) onReaction(r *discordgo.MessageReaction, added bool) {
	// reactionEvent(nil) is a typed nil that emit cannot detect.
	if r == nil {
		return
	}
	a.emit(reactionEvent(r, added))
}

func (a *Adapter) emit(ev event.Event) {
	if ev == nil {
		return
	}
	out, _ := a.out.Load().(chan<- event.Event)
	if out == nil {
		return
	}
	select {
	case out <- ev:
	default:
		a.dropped.Add(1)
	}
}

// Start opens the gateway session and forwards events to out. Events are
// dropped, and counted, when out is full.
func (a *Adapter) Start(ctx context.Context, out chan<- event.Event) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.out.Store(out)
	if err := a.s.Open(); err != nil {
		var nilOut chan<- event.Event
		a.out.Store(nilOut)
		return err
	}
	a.running = true
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.sup.Go("events.drop_report", func(c context.Context) error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDropped(cap(out))
				return nil
			case <-ticker.C:
				a.reportDropped(cap(out))
			}
		}
	})
	a.log.Info("gateway session opened")
	return nil
}

func (a *Adapter) reportDropped(capacity int) {
	if n := a.dropped.Swap(0); n > 0 {
		a.log.Warn("incoming events dropped (channel full)", logx.Int64("count", int64(n)), logx.Int("chan_cap", capacity))
	}
}

// Stop closes the session. It is safe to call when not running.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	wasRunning := a.running
	a.sup = nil
	a.running = false
	var nilOut chan<- event.Event
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	err := a.s.Close()
	if sup != nil {
		if werr := sup.Stop(ctx); werr != nil {
			a.log.Warn("discord stop timed out", logx.Err(werr))
		}
	}
	a.log.Info("gateway session closed")
	return err
}

// SendChannelMessage posts text to a channel, split to fit the message limit.
func (a *Adapter) SendChannelMessage(ctx context.Context, channelID, text string) error {
	for _, chunk := range splitText(text, messageLimit) {
		if _, err := a.s.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}

// Send posts text with optional buttons and returns the message id. The
// buttons must already be registered for clicks to be handled.
func (a *Adapter) Send(ctx context.Context, channelID, text string, buttons ...*button.Button) (string, error) {
	msg, err := a.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    truncate(text, messageLimit),
		Components: actionRows(buttons),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// React adds an emoji reaction to a message.
func (a *Adapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	return a.s.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
}

// PublishCommands overwrites the application's commands with cmds. The call
// is skipped when the definitions have not changed since the last publish.
func (a *Adapter) PublishCommands(ctx context.Context, cmds []*command.Meta) error {
	defs := applicationCommands(cmds)
	sum := hashCommands(defs)

	a.publishMu.Lock()
	defer a.publishMu.Unlock()
	if sum == a.publishHash {
		return nil
	}
	if a.s.State == nil || a.s.State.User == nil {
		return errors.New("discord session is not ready")
	}
	if _, err := a.s.ApplicationCommandBulkOverwrite(a.s.State.User.ID, a.cfg.GuildID, defs, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	a.publishHash = sum
	a.log.Info("application commands published", logx.Int("count", len(defs)), logx.String("guild_id", a.cfg.GuildID))
	return nil
}

func hashCommands(defs []*discordgo.ApplicationCommand) uint64 {
	h := fnv.New64a()
	for _, d := range defs {
		h.Write([]byte(d.Name))
		h.Write([]byte{0})
		h.Write([]byte(d.Description))
		for _, o := range d.Options {
			h.Write([]byte{0, byte(o.Type)})
			h.Write([]byte(o.Name))
			h.Write([]byte(o.Description))
			if o.Required {
				h.Write([]byte{1})
			}
			if o.Autocomplete {
				h.Write([]byte{2})
			}
		}
		h.Write([]byte{0xff})
	}
	return h.Sum64()
}
