package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"relaybot/internal/event"
	logx "relaybot/pkg/logx"
)

// messageSource replies to a channel message by posting in the same channel.
type messageSource struct {
	a         *Adapter
	channelID string
	userID    string
}

func (m *messageSource) Reply(ctx context.Context, text string) error {
	return m.a.SendChannelMessage(ctx, m.channelID, text)
}

func (m *messageSource) Permissions() event.Permission {
	perms, err := m.a.s.UserChannelPermissions(m.userID, m.channelID)
	if err != nil {
		m.a.log.Debug("channel permissions lookup failed", logx.String("user_id", m.userID), logx.String("channel_id", m.channelID), logx.Err(err))
		return event.PermissionNone
	}
	return event.Permission(perms)
}

// interactionSource answers the interaction first and sends follow-ups after.
type interactionSource struct {
	a *Adapter
	i *discordgo.Interaction

	mu        sync.Mutex
	responded bool
}

func (s *interactionSource) Reply(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := splitText(text, messageLimit)
	if !s.responded {
		err := s.a.s.InteractionRespond(s.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: chunks[0]},
		}, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		s.responded = true
		chunks = chunks[1:]
	}
	for _, c := range chunks {
		if _, err := s.a.s.FollowupMessageCreate(s.i, true, &discordgo.WebhookParams{Content: c}, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}

// Permissions are resolved by Discord and delivered with guild interactions.
// Interactions in direct messages carry none.
func (s *interactionSource) Permissions() event.Permission {
	if s.i.Member == nil {
		return event.PermissionNone
	}
	return event.Permission(s.i.Member.Permissions)
}

type suggester struct {
	a *Adapter
	i *discordgo.Interaction
}

func (s *suggester) Suggest(ctx context.Context, choices []string) error {
	return s.a.s.InteractionRespond(s.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: autocompleteChoices(choices)},
	}, discordgo.WithContext(ctx))
}
