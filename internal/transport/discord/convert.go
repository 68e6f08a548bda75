package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"relaybot/internal/button"
	"relaybot/internal/command"
	"relaybot/internal/event"
)

const (
	messageLimit     = 2000
	descriptionLimit = 100
	choiceLimit      = 25
	rowLimit         = 5
)

func actor(u *discordgo.User) event.Actor {
	if u == nil {
		return event.Actor{}
	}
	return event.Actor{ID: u.ID, Name: u.Username, Bot: u.Bot}
}

// interactionUser is the member's user inside guilds and the plain user in DMs.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func readyEvent(r *discordgo.Ready) *event.Ready {
	ev := &event.Ready{Guilds: len(r.Guilds)}
	if r.User != nil {
		ev.UserID = r.User.ID
		ev.Username = r.User.Username
	}
	return ev
}

func messageEvent(m *discordgo.Message, src event.Source) *event.Message {
	return &event.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Author:    actor(m.Author),
		Content:   m.Content,
		Source:    src,
	}
}

func reactionEvent(r *discordgo.MessageReaction, added bool) *event.Reaction {
	if r == nil {
		return nil
	}
	return &event.Reaction{
		Added:     added,
		MessageID: r.MessageID,
		ChannelID: r.ChannelID,
		GuildID:   r.GuildID,
		UserID:    r.UserID,
		Emoji:     emojiName(r.Emoji),
	}
}

// emojiName is the unicode character for standard emoji and name:id for
// custom ones.
func emojiName(e discordgo.Emoji) string {
	if e.ID == "" {
		return e.Name
	}
	return e.Name + ":" + e.ID
}

func slashEvent(i *discordgo.Interaction, src event.Source) *event.SlashCommand {
	data := i.ApplicationCommandData()
	return &event.SlashCommand{
		ID:        i.ID,
		Name:      data.Name,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Invoker:   actor(interactionUser(i)),
		Options:   optionValues(data.Options),
		Source:    src,
	}
}

// optionValues flattens options in declaration order. Subcommand names are
// kept as options whose value is the subcommand name.
func optionValues(opts []*discordgo.ApplicationCommandInteractionDataOption) []event.OptionValue {
	var out []event.OptionValue
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			out = append(out, event.OptionValue{Name: o.Name, Value: o.Name})
			out = append(out, optionValues(o.Options)...)
		default:
			out = append(out, event.OptionValue{Name: o.Name, Value: optionString(o)})
		}
	}
	return out
}

func optionString(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch v := o.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if o.Type == discordgo.ApplicationCommandOptionInteger {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}

func focusedOption(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range opts {
		if o.Focused {
			return o
		}
		if f := focusedOption(o.Options); f != nil {
			return f
		}
	}
	return nil
}

func autocompleteEvent(i *discordgo.Interaction, s event.Suggester) *event.Autocomplete {
	data := i.ApplicationCommandData()
	ev := &event.Autocomplete{
		Command:   data.Name,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Invoker:   actor(interactionUser(i)),
		Suggester: s,
	}
	if f := focusedOption(data.Options); f != nil {
		ev.Focused = f.Name
		ev.Value = optionString(f)
	}
	return ev
}

func clickEvent(i *discordgo.Interaction, src event.Source) *event.ButtonClick {
	ev := &event.ButtonClick{
		CustomID:  i.MessageComponentData().CustomID,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Invoker:   actor(interactionUser(i)),
		Source:    src,
	}
	if i.Message != nil {
		ev.MessageID = i.Message.ID
	}
	return ev
}

func optionType(t command.OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case command.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case command.OptionNumber:
		return discordgo.ApplicationCommandOptionNumber
	case command.OptionBoolean:
		return discordgo.ApplicationCommandOptionBoolean
	case command.OptionUser:
		return discordgo.ApplicationCommandOptionUser
	case command.OptionChannel:
		return discordgo.ApplicationCommandOptionChannel
	case command.OptionRole:
		return discordgo.ApplicationCommandOptionRole
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

// applicationCommands converts structured command metadata to Discord
// definitions. Options with choices are published with autocomplete on.
func applicationCommands(cmds []*command.Meta) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, m := range cmds {
		desc := m.Short
		if desc == "" {
			desc = m.Description
		}
		if desc == "" {
			desc = m.Name
		}
		def := &discordgo.ApplicationCommand{
			Name:        strings.ToLower(m.Name),
			Description: truncate(desc, descriptionLimit),
		}
		if m.Permission != event.PermissionNone {
			perm := int64(m.Permission)
			def.DefaultMemberPermissions = &perm
		}
		for _, o := range m.Options {
			od := o.Description
			if od == "" {
				od = o.Name
			}
			def.Options = append(def.Options, &discordgo.ApplicationCommandOption{
				Type:         optionType(o.Type),
				Name:         strings.ToLower(o.Name),
				Description:  truncate(od, descriptionLimit),
				Required:     o.Required,
				Autocomplete: len(o.Choices) > 0 && optionType(o.Type) == discordgo.ApplicationCommandOptionString,
			})
		}
		out = append(out, def)
	}
	return out
}

func autocompleteChoices(values []string) []*discordgo.ApplicationCommandOptionChoice {
	if len(values) > choiceLimit {
		values = values[:choiceLimit]
	}
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(values))
	for _, v := range values {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: truncate(v, descriptionLimit), Value: v})
	}
	return out
}

func buttonStyle(s button.Style) discordgo.ButtonStyle {
	switch s {
	case button.StyleSecondary:
		return discordgo.SecondaryButton
	case button.StyleSuccess:
		return discordgo.SuccessButton
	case button.StyleDanger:
		return discordgo.DangerButton
	case button.StyleLink:
		return discordgo.LinkButton
	default:
		return discordgo.PrimaryButton
	}
}

func buttonComponent(b *button.Button) discordgo.Button {
	out := discordgo.Button{
		Label:    b.Label,
		Style:    buttonStyle(b.Style),
		Disabled: b.Disabled,
	}
	if b.IsLink() {
		out.Style = discordgo.LinkButton
		out.URL = b.URL
	} else {
		out.CustomID = b.ID
	}
	if b.Emoji != "" {
		out.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
	}
	return out
}

// actionRows lays buttons out five per row.
func actionRows(buttons []*button.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += rowLimit {
		end := min(start+rowLimit, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, buttonComponent(b))
		}
		rows = append(rows, row)
	}
	return rows
}

func truncate(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit-1]) + "…"
}

// splitText cuts s into chunks of at most limit runes, preferring newline
// boundaries that do not leave tiny chunks.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
