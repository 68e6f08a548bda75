package utility

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"relaybot/internal/button"
	"relaybot/internal/command"
	"relaybot/internal/event"
	"relaybot/internal/eventwait"
	logx "relaybot/pkg/logx"
)

var errNoMessenger = errors.New("utility: no messenger configured")

// sendTimeout bounds sends made from timeout hooks and waiter actions, which
// run without a request context.
const sendTimeout = 10 * time.Second

func (p *Plugin) cmdPing(ctx context.Context, inv event.Invocation) error {
	return inv.Reply(ctx, "pong")
}

func (p *Plugin) cmdEcho(ctx context.Context, inv event.Invocation) error {
	txt := strings.TrimSpace(strings.Join(inv.Args(), " "))
	if txt == "" {
		return inv.Reply(ctx, "Usage: echo <text>")
	}
	return inv.Reply(ctx, txt)
}

func (p *Plugin) cmdPick(ctx context.Context, inv event.Invocation) error {
	v, _ := inv.Option("fruit")
	v = strings.ToLower(strings.TrimSpace(v))
	if !slices.Contains(fruits, v) {
		return inv.Reply(ctx, fmt.Sprintf("I don't know a fruit called %q.", v))
	}
	return inv.Reply(ctx, "You picked "+v+".")
}

func (p *Plugin) cmdHelp(ctx context.Context, inv event.Invocation) error {
	reg := p.deps.Commands
	if reg == nil {
		return inv.Reply(ctx, "help is unavailable")
	}
	if args := inv.Args(); len(args) > 0 {
		name := strings.TrimPrefix(args[0], reg.Prefix())
		m, ok := reg.LookupPrefix(reg.Prefix() + name)
		if !ok {
			m, ok = reg.LookupStructured(name)
		}
		if !ok || m.Hidden {
			return inv.Reply(ctx, "No command named "+name+".")
		}
		return inv.Reply(ctx, describe(reg.Prefix(), m))
	}

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, m := range reg.Visible() {
		b.WriteString(summary(reg.Prefix(), m))
		b.WriteByte('\n')
	}
	return inv.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func trigger(prefix string, m *command.Meta) string {
	if m.Prefixed() {
		return prefix + m.Name
	}
	return "/" + m.Name
}

func summary(prefix string, m *command.Meta) string {
	line := trigger(prefix, m)
	if m.Kind == command.KindHybrid {
		line += " (also /" + m.Name + ")"
	}
	if m.Short != "" {
		line += " - " + m.Short
	}
	return line
}

func describe(prefix string, m *command.Meta) string {
	var b strings.Builder
	b.WriteString(summary(prefix, m))
	if m.Usage != "" {
		b.WriteString("\nUsage: " + prefix + m.Usage)
	}
	if len(m.Aliases) > 0 {
		b.WriteString("\nAliases: " + strings.Join(m.Aliases, ", "))
	}
	for _, o := range m.Options {
		req := ""
		if o.Required {
			req = " (required)"
		}
		b.WriteString("\n  " + o.Name + req)
		if o.Description != "" {
			b.WriteString(": " + o.Description)
		}
	}
	return b.String()
}

// cmdConfirm posts Yes/No buttons only the caller may press. Pressing either
// removes both. Without an answer the question expires.
func (p *Plugin) cmdConfirm(ctx context.Context, inv event.Invocation) error {
	question := strings.TrimSpace(strings.Join(inv.Args(), " "))
	if question == "" {
		return inv.Reply(ctx, "Usage: confirm <question>")
	}
	if p.deps.Messenger == nil || p.deps.Buttons == nil {
		return errNoMessenger
	}
	base := p.nextID("confirm")
	yesID, noID := base+":yes", base+":no"
	channel := inv.Channel()
	drop := func() {
		p.deps.Buttons.Unregister(yesID)
		p.deps.Buttons.Unregister(noID)
	}
	answer := func(text string) button.ClickFunc {
		return func(ctx context.Context, c *event.ButtonClick) error {
			drop()
			return c.Reply(ctx, text)
		}
	}

	yes := &button.Button{
		ID:      yesID,
		Label:   "Yes",
		Style:   button.StyleSuccess,
		OwnerID: inv.User().ID,
		Timeout: confirmTimeout,
		OnClick: answer("Confirmed: " + question),
		OnTimeout: func() {
			p.deps.Buttons.Unregister(noID)
			sctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if _, err := p.deps.Messenger.Send(sctx, channel, "No answer to: "+question); err != nil {
				p.log.Warn("confirm expiry notice failed", logx.Err(err))
			}
		},
	}
	no := &button.Button{
		ID:      noID,
		Label:   "No",
		Style:   button.StyleDanger,
		OwnerID: inv.User().ID,
		Timeout: confirmTimeout,
		OnClick: answer("Cancelled: " + question),
	}
	if err := p.deps.Buttons.Register(yes); err != nil {
		return err
	}
	if err := p.deps.Buttons.Register(no); err != nil {
		drop()
		return err
	}
	if _, err := p.deps.Messenger.Send(ctx, channel, question, yes, no); err != nil {
		drop()
		return err
	}
	return nil
}

// cmdVote posts the topic and waits for the caller to react with the vote
// emoji on that message.
func (p *Plugin) cmdVote(ctx context.Context, inv event.Invocation) error {
	topic := strings.TrimSpace(strings.Join(inv.Args(), " "))
	if topic == "" {
		return inv.Reply(ctx, "Usage: vote <topic>")
	}
	if p.deps.Messenger == nil || p.deps.Waiter == nil {
		return errNoMessenger
	}
	channel, user := inv.Channel(), inv.User().ID
	msgID, err := p.deps.Messenger.Send(ctx, channel, fmt.Sprintf("Vote: %s\nReact with %s within %s.", topic, voteEmoji, voteTimeout))
	if err != nil {
		return err
	}
	if err := p.deps.Messenger.React(ctx, channel, msgID, voteEmoji); err != nil {
		p.log.Debug("seed reaction failed", logx.Err(err))
	}

	notify := func(text string) {
		sctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if _, err := p.deps.Messenger.Send(sctx, channel, text); err != nil {
			p.log.Warn("vote notice failed", logx.Err(err))
		}
	}
	_, err = eventwait.Await(p.deps.Waiter, event.KindReactionAdd,
		func(r *event.Reaction) bool {
			return r.MessageID == msgID && r.UserID == user && r.Emoji == voteEmoji
		},
		func(*event.Reaction) { notify("Vote counted for: " + topic) },
		eventwait.WithTimeout(voteTimeout, func() { notify("Vote closed without your reaction: " + topic) }),
	)
	return err
}

func (p *Plugin) cmdStatus(ctx context.Context, inv event.Invocation) error {
	return inv.Reply(ctx, p.statusText())
}

func (p *Plugin) cmdUptime(ctx context.Context, inv event.Invocation) error {
	return inv.Reply(ctx, "Up for "+durRel(p.uptime()))
}
