// Package discord implements remote.Platform on a discordgo session and
// publishes gateway events onto the bus.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/remote"
	"github.com/tinyland-inc/gamelink/pkg/render"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsMessageContent

// Publisher is the part of the event bus the session needs.
type Publisher interface {
	Publish(kind bus.EventKind, payload ...any) (bus.Event, error)
}

type Option func(*Session)

// WithStateHook is called with true when the gateway is ready (initially and
// after every resume) and with false when it disconnects.
func WithStateHook(fn func(connected bool)) Option {
	return func(s *Session) { s.onState = fn }
}

func WithBreaker(cfg BreakerConfig) Option {
	return func(s *Session) { s.breaker = newBreaker(cfg) }
}

type Session struct {
	dg      *discordgo.Session
	pub     Publisher
	breaker *breaker
	onState func(bool)

	mu     sync.RWMutex
	selfID string
}

func New(token string, pub Publisher, opts ...Option) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is empty")
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	dg, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = intents
	dg.StateEnabled = true

	s := &Session{dg: dg, pub: pub}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = newBreaker(DefaultBreakerConfig())
	}

	dg.AddHandler(s.onReady)
	dg.AddHandler(s.onResumed)
	dg.AddHandler(s.onDisconnect)
	dg.AddHandler(s.onMessageCreate)
	dg.AddHandler(s.onMessageUpdate)
	dg.AddHandler(s.onMessageDelete)
	dg.AddHandler(s.onReactionAdd)
	dg.AddHandler(s.onReactionRemove)
	dg.AddHandler(s.onMemberAdd)
	return s, nil
}

func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	return s.dg.Close()
}

// BreakerOpen reports whether REST calls are currently failing fast.
func (s *Session) BreakerOpen() bool {
	return s.breaker.open()
}

func (s *Session) SelfID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

func allowedMentions(opts remote.SendOptions) *discordgo.MessageAllowedMentions {
	parse := []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}
	if opts.AllowEveryone {
		parse = append(parse, discordgo.AllowedMentionTypeEveryone)
	}
	return &discordgo.MessageAllowedMentions{Parse: parse}
}

func embeds(content *render.Content) []*discordgo.MessageEmbed {
	if content == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{render.ToEmbed(*content)}
}

func (s *Session) Send(ctx context.Context, channelID, text string, content *render.Content, opts remote.SendOptions) (remote.MessageRef, error) {
	var ref remote.MessageRef
	err := s.breaker.call(func() error {
		msg, err := s.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content:         text,
			Embeds:          embeds(content),
			AllowedMentions: allowedMentions(opts),
		}, discordgo.WithContext(ctx))
		if err != nil {
			return classify(err)
		}
		ref = remote.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}
		return nil
	})
	return ref, err
}

func (s *Session) Edit(ctx context.Context, ref remote.MessageRef, text string, content *render.Content) error {
	return s.breaker.call(func() error {
		edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID).SetContent(text)
		if content != nil {
			e := embeds(content)
			edit.Embeds = &e
		}
		_, err := s.dg.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
		return classify(err)
	})
}

func (s *Session) Delete(ctx context.Context, ref remote.MessageRef) error {
	return s.breaker.call(func() error {
		return classify(s.dg.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)))
	})
}

func (s *Session) ResolveGuild(_ context.Context, nameOrID string) (remote.Guild, bool) {
	s.dg.State.RLock()
	defer s.dg.State.RUnlock()
	for _, g := range s.dg.State.Guilds {
		if g.ID == nameOrID || strings.EqualFold(g.Name, nameOrID) {
			return remote.Guild{ID: g.ID, Name: g.Name}, true
		}
	}
	return remote.Guild{}, false
}

func (s *Session) ResolveChannel(ctx context.Context, guildID, nameOrID string) (remote.Channel, bool) {
	name := strings.TrimPrefix(nameOrID, "#")
	match := func(chs []*discordgo.Channel) (remote.Channel, bool) {
		for _, c := range chs {
			if c.Type != discordgo.ChannelTypeGuildText && c.Type != discordgo.ChannelTypeGuildNews {
				continue
			}
			if c.ID == nameOrID || strings.EqualFold(c.Name, name) {
				return remote.Channel{ID: c.ID, GuildID: guildID, Name: c.Name}, true
			}
		}
		return remote.Channel{}, false
	}

	if g, err := s.dg.State.Guild(guildID); err == nil {
		s.dg.State.RLock()
		ch, ok := match(g.Channels)
		s.dg.State.RUnlock()
		if ok {
			return ch, true
		}
	}
	chs, err := s.dg.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		logger.DebugCF("discord", "Channel lookup failed", map[string]any{
			"guild": guildID,
			"error": err.Error(),
		})
		return remote.Channel{}, false
	}
	return match(chs)
}

func (s *Session) ResolveUser(ctx context.Context, guildID, userID string) (remote.User, bool) {
	if m, err := s.dg.State.Member(guildID, userID); err == nil && m.User != nil {
		return remote.User{ID: m.User.ID, Username: memberName(m, m.User), Bot: m.User.Bot}, true
	}
	u, err := s.dg.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return remote.User{}, false
	}
	return remote.User{ID: u.ID, Username: userName(u), Bot: u.Bot}, true
}

func (s *Session) SetActivity(_ context.Context, text string) error {
	return classify(s.dg.UpdateGameStatus(0, text))
}

var _ remote.Platform = (*Session)(nil)
