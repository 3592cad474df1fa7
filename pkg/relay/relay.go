// Package relay carries chat between game channels and linked Discord
// channels.
//
// Outbound forwards game chat to Discord; Inbound forwards Discord chat into
// the game under the configured relay identity. Game chat authored by that
// identity is not forwarded back unless it carries the echo marker.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/remote"
	"github.com/tinyland-inc/gamelink/pkg/render"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

const (
	OutboundName = "chat-relay-out"
	InboundName  = "chat-relay-in"

	dedupeWindow = 256
)

type Outbound struct {
	worker.Base
	sys *bridge.SystemContext
}

func NewOutbound(sys *bridge.SystemContext) *Outbound {
	return &Outbound{sys: sys}
}

func (o *Outbound) Name() string { return OutboundName }
func (o *Outbound) Triggers() bus.EventKind { return bus.MessageSent }
func (o *Outbound) ShouldRun() bool { return o.sys.Config().Features.ChatRelay }

func (o *Outbound) Update(ctx context.Context, e bus.Event) error {
	msg, ok := bus.Find[gameserver.ChatMessage](e)
	if !ok {
		return nil
	}
	game := o.sys.Config().Game

	text := msg.Text
	if strings.EqualFold(msg.Author, game.RelayName) {
		if game.EchoMarker == "" || !strings.Contains(text, game.EchoMarker) {
			return nil
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, game.EchoMarker, ""))
	}

	text = StripGameMarkup(text)
	if text == "" {
		return nil
	}

	var errs []error
	for _, l := range o.sys.Links.ByLocal(msg.Channel) {
		if !l.Direction.Outbound() {
			continue
		}
		allow := l.Mentions.AllowsBroadcast(msg.Admin)
		body := text
		if !allow {
			body = StripBroadcastMentions(body)
		}
		line := fmt.Sprintf("**%s**: %s", escapeDiscord(StripGameMarkup(msg.Author)), body)
		for _, chunk := range render.SplitMessage(line, render.MessageTextLimit) {
			if _, err := o.sys.Platform.Send(ctx, l.ChannelID, chunk, nil, remote.SendOptions{AllowEveryone: allow}); err != nil {
				errs = append(errs, fmt.Errorf("link %s: %w", l.Name, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

type Inbound struct {
	worker.Base
	sys    *bridge.SystemContext
	recent *recentSet
}

func NewInbound(sys *bridge.SystemContext) *Inbound {
	return &Inbound{sys: sys, recent: newRecentSet(dedupeWindow)}
}

func (in *Inbound) Name() string { return InboundName }
func (in *Inbound) Triggers() bus.EventKind { return bus.MessageSent }
func (in *Inbound) ShouldRun() bool { return in.sys.Config().Features.ChatRelay }

func (in *Inbound) Update(ctx context.Context, e bus.Event) error {
	msg, ok := bus.Find[remote.ChatMessage](e)
	if !ok {
		return nil
	}
	cfg := in.sys.Config()

	if msg.AuthorBot || msg.AuthorID == in.sys.Platform.SelfID() {
		return nil
	}
	if p := cfg.Discord.CommandPrefix; p != "" && strings.HasPrefix(msg.Content, p) {
		return nil
	}

	l, ok := in.sys.Links.ByRemote(msg.GuildID, msg.ChannelID)
	if !ok || !l.Direction.Inbound() || !l.RoleAllowed(msg.Roles) {
		return nil
	}
	if msg.ID != "" && !in.recent.Add(msg.ID) {
		logger.DebugCF("relay", "Dropping duplicate message", map[string]any{"message": msg.ID})
		return nil
	}

	text := StripDiscordMarkup(msg.Content, func(id string) string {
		if n, ok := msg.Mentions[id]; ok {
			return n
		}
		if u, ok := in.sys.Platform.ResolveUser(ctx, msg.GuildID, id); ok {
			return u.Username
		}
		return ""
	})
	if text == "" {
		return nil
	}

	line := fmt.Sprintf("%s: %s", msg.AuthorName, text)
	if err := in.sys.Game.SendChat(ctx, l.LocalChannel, cfg.Game.RelayName, line); err != nil {
		return fmt.Errorf("link %s: %w", l.Name, err)
	}
	return nil
}
