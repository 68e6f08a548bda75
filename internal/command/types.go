package command

import (
	"context"
	"strings"

	"relaybot/internal/event"
	"relaybot/internal/task/scheduler"
)

// Kind says how a command can be triggered.
type Kind int

const (
	KindPrefix Kind = iota
	KindStructured
	KindHybrid
)

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindHybrid:
		return "hybrid"
	default:
		return "prefix"
	}
}

type OptionType int

const (
	OptionString OptionType = iota
	OptionInteger
	OptionNumber
	OptionBoolean
	OptionUser
	OptionChannel
	OptionRole
)

// Option declares one structured-command option. Choices, when set, are the
// autocomplete candidates offered while the user types.
type Option struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	Choices     []string
}

type HandlerFunc func(ctx context.Context, inv event.Invocation) error

// Descriptor is what a group declares for each command.
type Descriptor struct {
	Name        string
	Aliases     []string
	Kind        Kind
	Short       string
	Description string
	Usage       string
	Options     []Option
	Permission  event.Permission
	// DeniedMessage overrides the bot-wide denial reply for this command.
	DeniedMessage string
	// Hidden commands route normally but are left out of Visible.
	Hidden  bool
	Handler HandlerFunc
}

// Group is a set of commands registered together.
type Group interface {
	Name() string
	Commands() []Descriptor
}

// TaskProvider is implemented by groups that declare recurring tasks.
type TaskProvider interface {
	Tasks() []scheduler.Descriptor
}

// ReadyHook is implemented by groups that want a callback once the platform
// session is ready, before tasks start.
type ReadyHook interface {
	OnReady(ctx context.Context) error
}

// Hook is a registered ReadyHook with its group name.
type Hook struct {
	Group string
	Run   func(ctx context.Context) error
}

// Meta is the registered form of a Descriptor. Registry hands out shared
// pointers; callers must not modify them.
type Meta struct {
	Name          string
	Group         string
	Aliases       []string
	Kind          Kind
	Short         string
	Description   string
	Usage         string
	Options       []Option
	Permission    event.Permission
	DeniedMessage string
	Hidden        bool
	Handler       HandlerFunc
}

// Prefixed reports whether the command answers to prefix messages.
func (m *Meta) Prefixed() bool { return m.Kind != KindStructured }

// Structured reports whether the command is published as a structured command.
func (m *Meta) Structured() bool { return m.Kind != KindPrefix }

func (m *Meta) Option(name string) (Option, bool) {
	for _, o := range m.Options {
		if strings.EqualFold(o.Name, name) {
			return o, true
		}
	}
	return Option{}, false
}
