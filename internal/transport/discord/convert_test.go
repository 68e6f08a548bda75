package discord

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaybot/internal/button"
	"relaybot/internal/command"
	"relaybot/internal/event"
	logx "relaybot/pkg/logx"
)

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Token: "  "}, logx.Nop())
	require.Error(t, err)
}

func TestReactionWithoutPayloadIsNotEmitted(t *testing.T) {
	t.Parallel()

	a, err := New(Config{Token: "test"}, logx.Nop())
	require.NoError(t, err)
	out := make(chan event.Event, 2)
	a.out.Store((chan<- event.Event)(out))

	a.onReaction(nil, true)
	a.onReaction(&discordgo.MessageReaction{UserID: "u1", MessageID: "m1", Emoji: discordgo.Emoji{Name: "👍"}}, false)

	require.Len(t, out, 1)
	ev := <-out
	require.NotNil(t, ev)
	assert.Equal(t, event.KindReactionRemove, ev.Kind())
	assert.Zero(t, a.dropped.Load())
}

func TestSlashEventFlattensOptions(t *testing.T) {
	t.Parallel()

	i := &discordgo.Interaction{
		ID:        "i1",
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		GuildID:   "g1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "ann"}, Permissions: discordgo.PermissionManageMessages},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "remind",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "set", Type: discordgo.ApplicationCommandOptionSubCommand, Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "minutes", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(15)},
					{Name: "text", Type: discordgo.ApplicationCommandOptionString, Value: "tea"},
				}},
			},
		},
	}

	src := &interactionSource{i: i}
	ev := slashEvent(i, src)
	assert.Equal(t, "remind", ev.Name)
	assert.Equal(t, event.Actor{ID: "u1", Name: "ann"}, ev.Invoker)
	assert.Equal(t, []event.OptionValue{
		{Name: "set", Value: "set"},
		{Name: "minutes", Value: "15"},
		{Name: "text", Value: "tea"},
	}, ev.Options)
	assert.Equal(t, []string{"set", "15", "tea"}, ev.Args())
	assert.True(t, ev.HasPermission(event.PermissionManageMessages))
	assert.False(t, ev.HasPermission(event.PermissionBanMembers))
}

func TestDirectMessageInteractionHasNoPermissions(t *testing.T) {
	t.Parallel()

	i := &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u2"},
		Data: discordgo.ApplicationCommandInteractionData{Name: "ping"},
	}
	ev := slashEvent(i, &interactionSource{i: i})
	assert.Equal(t, "u2", ev.Invoker.ID)
	assert.False(t, ev.HasPermission(event.PermissionKickMembers))
	assert.True(t, ev.HasPermission(event.PermissionNone))
}

func TestAutocompleteEventPicksFocused(t *testing.T) {
	t.Parallel()

	i := &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommandAutocomplete,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "pick",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "first", Type: discordgo.ApplicationCommandOptionString, Value: "done"},
				{Name: "fruit", Type: discordgo.ApplicationCommandOptionString, Value: "ba", Focused: true},
			},
		},
	}
	ev := autocompleteEvent(i, nil)
	assert.Equal(t, "pick", ev.Command)
	assert.Equal(t, "fruit", ev.Focused)
	assert.Equal(t, "ba", ev.Value)
	assert.ErrorIs(t, ev.Suggest(context.Background(), nil), event.ErrNoSource)
}

func TestClickAndReactionEvents(t *testing.T) {
	t.Parallel()

	i := &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		Message: &discordgo.Message{ID: "m1"},
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data:    discordgo.MessageComponentInteractionData{CustomID: "confirm:1", ComponentType: discordgo.ButtonComponent},
	}
	click := clickEvent(i, nil)
	assert.Equal(t, "confirm:1", click.CustomID)
	assert.Equal(t, "m1", click.MessageID)
	assert.Equal(t, "u1", click.Invoker.ID)

	r := reactionEvent(&discordgo.MessageReaction{UserID: "u1", MessageID: "m1", Emoji: discordgo.Emoji{Name: "party", ID: "42"}}, false)
	assert.Equal(t, event.KindReactionRemove, r.Kind())
	assert.Equal(t, "party:42", r.Emoji)
	assert.Equal(t, "👍", emojiName(discordgo.Emoji{Name: "👍"}))
}

func TestApplicationCommands(t *testing.T) {
	t.Parallel()

	defs := applicationCommands([]*command.Meta{
		{
			Name:       "Echo",
			Short:      "repeat text",
			Permission: event.PermissionManageMessages,
			Options: []command.Option{
				{Name: "text", Type: command.OptionString, Required: true},
				{Name: "fruit", Description: "a fruit", Choices: []string{"apple"}},
				{Name: "count", Type: command.OptionInteger, Choices: []string{"1"}},
			},
		},
		{Name: "bare"},
	})
	require.Len(t, defs, 2)

	echo := defs[0]
	assert.Equal(t, "echo", echo.Name)
	assert.Equal(t, "repeat text", echo.Description)
	require.NotNil(t, echo.DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionManageMessages), *echo.DefaultMemberPermissions)
	require.Len(t, echo.Options, 3)
	assert.Equal(t, "text", echo.Options[0].Description)
	assert.True(t, echo.Options[0].Required)
	assert.False(t, echo.Options[0].Autocomplete)
	assert.True(t, echo.Options[1].Autocomplete)
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, echo.Options[2].Type)
	assert.False(t, echo.Options[2].Autocomplete)

	assert.Equal(t, "bare", defs[1].Description)
	assert.Nil(t, defs[1].DefaultMemberPermissions)

	assert.Equal(t, hashCommands(defs), hashCommands(applicationCommands([]*command.Meta{
		{Name: "Echo", Short: "repeat text", Permission: event.PermissionManageMessages, Options: []command.Option{
			{Name: "text", Type: command.OptionString, Required: true},
			{Name: "fruit", Description: "a fruit", Choices: []string{"apple"}},
			{Name: "count", Type: command.OptionInteger, Choices: []string{"1"}},
		}},
		{Name: "bare"},
	})))
	assert.NotEqual(t, hashCommands(defs), hashCommands(defs[:1]))
}

func TestButtonComponents(t *testing.T) {
	t.Parallel()

	link := buttonComponent(&button.Button{Label: "docs", URL: "https://example.org"})
	assert.Equal(t, discordgo.LinkButton, link.Style)
	assert.Empty(t, link.CustomID)

	ok := buttonComponent(&button.Button{ID: "ok", Label: "OK", Emoji: "✅", Style: button.StyleSuccess})
	assert.Equal(t, discordgo.SuccessButton, ok.Style)
	assert.Equal(t, "ok", ok.CustomID)
	require.NotNil(t, ok.Emoji)
	assert.Equal(t, "✅", ok.Emoji.Name)

	var many []*button.Button
	for i := 0; i < 7; i++ {
		many = append(many, &button.Button{ID: strings.Repeat("x", i+1)})
	}
	rows := actionRows(many)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].(discordgo.ActionsRow).Components, 5)
	assert.Len(t, rows[1].(discordgo.ActionsRow).Components, 2)
}

func TestAutocompleteChoicesCapped(t *testing.T) {
	t.Parallel()

	var values []string
	for i := 0; i < 30; i++ {
		values = append(values, strings.Repeat("a", i+1))
	}
	choices := autocompleteChoices(values)
	assert.Len(t, choices, choiceLimit)
	assert.Equal(t, "a", choices[0].Value)
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, splitText("short", 10))

	long := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	assert.Equal(t, []string{strings.Repeat("a", 8), strings.Repeat("b", 8)}, splitText(long, 10))

	flat := strings.Repeat("c", 25)
	parts := splitText(flat, 10)
	require.Len(t, parts, 3)
	assert.Equal(t, flat, strings.Join(parts, ""))

	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "abc", truncate("abc", 5))
}
