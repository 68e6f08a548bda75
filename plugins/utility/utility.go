// Package utility is the bundled command group: everyday commands plus a
// heartbeat task and an optional daily digest.
package utility

import (
	"context"
	"strconv"
	"sync"
	"time"

	"relaybot/internal/button"
	"relaybot/internal/command"
	"relaybot/internal/event"
	"relaybot/internal/eventwait"
	"relaybot/internal/task/scheduler"
	logx "relaybot/pkg/logx"
)

// Messenger is the slice of the transport the group needs.
type Messenger interface {
	Send(ctx context.Context, channelID, text string, buttons ...*button.Button) (string, error)
	React(ctx context.Context, channelID, messageID, emoji string) error
}

type Config struct {
	AnnounceChannel string
	DigestTimes     []string
}

type Deps struct {
	Logger    logx.Logger
	Messenger Messenger
	Commands  *command.Registry
	Buttons   *button.Registry
	Waiter    *eventwait.Waiter
	Scheduler *scheduler.Scheduler
}

var fruits = []string{"apple", "apricot", "banana", "blackberry", "blueberry", "cherry", "grape", "lemon", "lime", "mango", "orange", "peach", "pear", "plum"}

const (
	confirmTimeout = 30 * time.Second
	voteTimeout    = time.Minute
	voteEmoji      = "👍"
)

type Plugin struct {
	log  logx.Logger
	cfg  Config
	deps Deps

	mu      sync.Mutex
	readyAt time.Time
	beats   int64
	seq     int64
}

func New(cfg Config, deps Deps) *Plugin {
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Plugin{log: log.With(logx.String("plugin", "utility")), cfg: cfg, deps: deps}
}

func (p *Plugin) Name() string { return "utility" }

func (p *Plugin) Commands() []command.Descriptor {
	return []command.Descriptor{
		{
			Name:    "ping",
			Aliases: []string{"p", "latency"},
			Kind:    command.KindHybrid,
			Short:   "check that the bot answers",
			Handler: p.cmdPing,
		},
		{
			Name:  "echo",
			Kind:  command.KindHybrid,
			Short: "repeat text back",
			Usage: "echo <text>",
			Options: []command.Option{
				{Name: "text", Description: "what to repeat", Required: true},
			},
			Handler: p.cmdEcho,
		},
		{
			Name:  "pick",
			Kind:  command.KindStructured,
			Short: "pick a fruit",
			Options: []command.Option{
				{Name: "fruit", Description: "start typing a fruit", Required: true, Choices: fruits},
			},
			Handler: p.cmdPick,
		},
		{
			Name:    "help",
			Aliases: []string{"commands"},
			Short:   "list commands",
			Usage:   "help [command]",
			Handler: p.cmdHelp,
		},
		{
			Name:    "confirm",
			Short:   "ask yourself a yes/no question",
			Usage:   "confirm <question>",
			Handler: p.cmdConfirm,
		},
		{
			Name:    "vote",
			Short:   "wait for your reaction",
			Usage:   "vote <topic>",
			Handler: p.cmdVote,
		},
		{
			Name:          "status",
			Kind:          command.KindHybrid,
			Short:         "runtime and task status",
			Permission:    event.PermissionManageGuild,
			DeniedMessage: "Only server managers can see the status.",
			Handler:       p.cmdStatus,
		},
		{
			Name:    "uptime",
			Hidden:  true,
			Handler: p.cmdUptime,
		},
	}
}

func (p *Plugin) Tasks() []scheduler.Descriptor {
	tasks := []scheduler.Descriptor{
		{Name: "heartbeat", Minutes: 30, Run: p.heartbeat},
	}
	if len(p.cfg.DigestTimes) > 0 {
		tasks = append(tasks, scheduler.Descriptor{Name: "digest", Times: p.cfg.DigestTimes, Run: p.digest})
	}
	return tasks
}

// OnReady records the session start used by uptime.
func (p *Plugin) OnReady(ctx context.Context) error {
	p.mu.Lock()
	p.readyAt = time.Now()
	p.mu.Unlock()
	p.log.Info("utility ready", logx.Int("fruits", len(fruits)))
	return nil
}

func (p *Plugin) heartbeat(ctx context.Context) error {
	p.mu.Lock()
	p.beats++
	n := p.beats
	p.mu.Unlock()
	p.log.Debug("heartbeat", logx.Int64("count", n))
	return nil
}

func (p *Plugin) digest(ctx context.Context) error {
	if p.cfg.AnnounceChannel == "" || p.deps.Messenger == nil {
		p.log.Info("digest skipped: no announce channel")
		return nil
	}
	_, err := p.deps.Messenger.Send(ctx, p.cfg.AnnounceChannel, p.statusText())
	return err
}

func (p *Plugin) nextID(prefix string) string {
	p.mu.Lock()
	p.seq++
	n := p.seq
	p.mu.Unlock()
	return prefix + ":" + strconv.FormatInt(n, 10)
}
