package modules

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
)

const LoginFeedName = "login-feed"

// LoginFeed announces players joining the world and logging in or out.
type LoginFeed struct {
	feed
}

func NewLoginFeed(sys *bridge.SystemContext) *LoginFeed {
	return &LoginFeed{feed: newFeed(FeedLogins, sys)}
}

func (l *LoginFeed) Name() string { return LoginFeedName }

func (l *LoginFeed) Triggers() bus.EventKind {
	return bus.UserJoined | bus.UserLogin | bus.UserLogout
}

func (l *LoginFeed) ShouldRun() bool { return l.sys.Config().Features.LoginFeed }

func (l *LoginFeed) Update(ctx context.Context, e bus.Event) error {
	p, ok := bus.Find[gameserver.Presence](e)
	if !ok || p.User.Name == "" {
		return nil
	}
	var text string
	switch {
	case e.Kind.Has(bus.UserJoined):
		text = fmt.Sprintf(":wave: **%s** joined the server for the first time", p.User.Name)
	case e.Kind.Has(bus.UserLogin):
		text = fmt.Sprintf(":green_circle: **%s** logged in", p.User.Name)
	case e.Kind.Has(bus.UserLogout):
		text = fmt.Sprintf(":red_circle: **%s** logged out", p.User.Name)
	default:
		return nil
	}
	return l.postText(ctx, text)
}
