package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/remote"
)

func (s *Session) publish(kind bus.EventKind, payload any) {
	if _, err := s.pub.Publish(kind, payload); err != nil {
		logger.DebugCF("discord", "Publish rejected", map[string]any{
			"kind":  kind.String(),
			"error": err.Error(),
		})
	}
}

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.mu.Lock()
	if r.User != nil {
		s.selfID = r.User.ID
	}
	s.mu.Unlock()

	logger.InfoCF("discord", "Discord gateway ready", map[string]any{
		"user":   userName(r.User),
		"guilds": len(r.Guilds),
	})
	if s.onState != nil {
		s.onState(true)
	}
}

func (s *Session) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	logger.InfoC("discord", "Discord gateway resumed")
	if s.onState != nil {
		s.onState(true)
	}
}

func (s *Session) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	logger.WarnC("discord", "Discord gateway disconnected")
	if s.onState != nil {
		s.onState(false)
	}
}

func (s *Session) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.GuildID == "" {
		return
	}
	s.publish(bus.MessageSent, chatMessage(m.Message))
}

func (s *Session) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil || m.GuildID == "" || m.Author == nil {
		return
	}
	s.publish(bus.MessageEdited, chatMessage(m.Message))
}

func (s *Session) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	if m.Message == nil {
		return
	}
	s.publish(bus.MessageDeleted, remote.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID})
}

func (s *Session) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}
	s.publish(bus.ReactionAdded, reaction(r.MessageReaction))
}

func (s *Session) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.MessageReaction == nil {
		return
	}
	s.publish(bus.ReactionRemoved, reaction(r.MessageReaction))
}

func (s *Session) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	s.publish(bus.UserJoined, remote.User{ID: m.User.ID, Username: memberName(m.Member, m.User), Bot: m.User.Bot})
}

// chatMessage converts a gateway message into the platform-neutral form.
func chatMessage(m *discordgo.Message) remote.ChatMessage {
	msg := remote.ChatMessage{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorBot = m.Author.Bot
		msg.AuthorName = memberName(m.Member, m.Author)
	}
	if m.Member != nil {
		msg.Roles = append([]string(nil), m.Member.Roles...)
	}
	if len(m.Mentions) > 0 {
		msg.Mentions = make(map[string]string, len(m.Mentions))
		for _, u := range m.Mentions {
			if u != nil {
				msg.Mentions[u.ID] = userName(u)
			}
		}
	}
	return msg
}

func reaction(r *discordgo.MessageReaction) remote.Reaction {
	emoji := r.Emoji.Name
	if r.Emoji.ID != "" {
		emoji = r.Emoji.APIName()
	}
	return remote.Reaction{
		Message: remote.MessageRef{ChannelID: r.ChannelID, MessageID: r.MessageID},
		GuildID: r.GuildID,
		UserID:  r.UserID,
		Emoji:   emoji,
	}
}

// memberName prefers the guild nickname, then the global display name.
func memberName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	return userName(u)
}

func userName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
