package event

import (
	"context"
	"errors"
	"strings"
)

// ErrNoSource is returned when an event was built without a platform source
// to answer through.
var ErrNoSource = errors.New("event: no reply source")

// Event is anything delivered to the bot.
type Event interface {
	Kind() Kind
}

// Replier answers in the context that produced an event.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// Source is what the transport attaches to user-triggered events.
type Source interface {
	Replier
	// Permissions returns the acting user's permission set in the event's channel.
	Permissions() Permission
}

// Suggester answers an autocomplete request.
type Suggester interface {
	Suggest(ctx context.Context, choices []string) error
}

type Actor struct {
	ID   string
	Name string
	Bot  bool
}

// Invocation is the view of a command trigger handed to handlers. Both prefix
// messages and structured commands implement it, so hybrid commands take one
// handler.
type Invocation interface {
	Event
	User() Actor
	Channel() string
	Guild() string
	// Args returns the whitespace-split words after the trigger for prefix
	// invocations, or the option values in declaration order for structured ones.
	Args() []string
	// Option returns a structured option value by name. Prefix invocations
	// have none.
	Option(name string) (string, bool)
	HasPermission(p Permission) bool
	Reply(ctx context.Context, text string) error
}

type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Author    Actor
	Content   string
	Source    Source
}

func (*Message) Kind() Kind        { return KindMessage }
func (m *Message) User() Actor     { return m.Author }
func (m *Message) Channel() string { return m.ChannelID }
func (m *Message) Guild() string   { return m.GuildID }
func (m *Message) Trigger() string {
	f := strings.Fields(m.Content)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
func (m *Message) Args() []string {
	f := strings.Fields(m.Content)
	if len(f) < 2 {
		return nil
	}
	return f[1:]
}
func (m *Message) Option(string) (string, bool) { return "", false }
func (m *Message) HasPermission(p Permission) bool {
	return hasPermission(m.Source, p)
}
func (m *Message) Reply(ctx context.Context, text string) error {
	return reply(ctx, m.Source, text)
}

type OptionValue struct {
	Name  string
	Value string
}

type SlashCommand struct {
	ID        string
	Name      string
	ChannelID string
	GuildID   string
	Invoker   Actor
	Options   []OptionValue
	Source    Source
}

func (*SlashCommand) Kind() Kind        { return KindSlashCommand }
func (s *SlashCommand) User() Actor     { return s.Invoker }
func (s *SlashCommand) Channel() string { return s.ChannelID }
func (s *SlashCommand) Guild() string   { return s.GuildID }
func (s *SlashCommand) Args() []string {
	if len(s.Options) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.Options))
	for _, o := range s.Options {
		out = append(out, o.Value)
	}
	return out
}
func (s *SlashCommand) Option(name string) (string, bool) {
	for _, o := range s.Options {
		if strings.EqualFold(o.Name, name) {
			return o.Value, true
		}
	}
	return "", false
}
func (s *SlashCommand) HasPermission(p Permission) bool {
	return hasPermission(s.Source, p)
}
func (s *SlashCommand) Reply(ctx context.Context, text string) error {
	return reply(ctx, s.Source, text)
}

// Autocomplete asks for suggestions for the focused option of a structured
// command while the user is typing.
type Autocomplete struct {
	Command   string
	Focused   string
	Value     string
	ChannelID string
	GuildID   string
	Invoker   Actor
	Suggester Suggester
}

func (*Autocomplete) Kind() Kind { return KindAutocomplete }
func (a *Autocomplete) Suggest(ctx context.Context, choices []string) error {
	if a.Suggester == nil {
		return ErrNoSource
	}
	return a.Suggester.Suggest(ctx, choices)
}

type ButtonClick struct {
	CustomID  string
	MessageID string
	ChannelID string
	GuildID   string
	Invoker   Actor
	Source    Source
}

func (*ButtonClick) Kind() Kind { return KindButtonClick }
func (b *ButtonClick) Reply(ctx context.Context, text string) error {
	return reply(ctx, b.Source, text)
}

type Reaction struct {
	Added     bool
	MessageID string
	ChannelID string
	GuildID   string
	UserID    string
	Emoji     string
}

func (r *Reaction) Kind() Kind {
	if r.Added {
		return KindReactionAdd
	}
	return KindReactionRemove
}

type Ready struct {
	UserID   string
	Username string
	Guilds   int
}

func (*Ready) Kind() Kind { return KindReady }

type Shutdown struct {
	Reason string
}

func (*Shutdown) Kind() Kind { return KindShutdown }

func hasPermission(src Source, p Permission) bool {
	if p == PermissionNone {
		return true
	}
	if src == nil {
		return false
	}
	return src.Permissions().Has(p)
}

func reply(ctx context.Context, src Source, text string) error {
	if src == nil {
		return ErrNoSource
	}
	return src.Reply(ctx, text)
}
