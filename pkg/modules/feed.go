package modules

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/remote"
	"github.com/tinyland-inc/gamelink/pkg/render"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

// Feed names as they appear in a link's feeds list.
const (
	FeedTrades    = "trades"
	FeedLogins    = "logins"
	FeedElections = "elections"
)

// feed posts one-shot messages to every validated link subscribed to it.
type feed struct {
	worker.Base
	name string
	sys  *bridge.SystemContext
}

func newFeed(name string, sys *bridge.SystemContext) feed {
	return feed{name: name, sys: sys}
}

// post sends content to each subscribed link. A failing link does not stop
// delivery to the others.
func (f feed) post(ctx context.Context, content render.Content) error {
	pages := render.Paginate(content)
	return f.each(func(channelID string) error {
		for i := range pages {
			if _, err := f.sys.Platform.Send(ctx, channelID, "", &pages[i], remote.SendOptions{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// postText is post for plain text, split at the message limit.
func (f feed) postText(ctx context.Context, text string) error {
	chunks := render.SplitMessage(text, render.MessageTextLimit)
	return f.each(func(channelID string) error {
		for _, c := range chunks {
			if _, err := f.sys.Platform.Send(ctx, channelID, c, nil, remote.SendOptions{}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (f feed) each(send func(channelID string) error) error {
	var errs []error
	for _, l := range f.sys.Links.WithFeed(f.name) {
		if err := send(l.ChannelID); err != nil {
			errs = append(errs, fmt.Errorf("feed %s link %s: %w", f.name, l.Name, err))
			continue
		}
		f.sys.Stats.FeedPosted(f.name)
	}
	if len(errs) > 0 {
		logger.DebugCF("modules", "Feed delivery incomplete", map[string]any{
			"feed":   f.name,
			"failed": len(errs),
		})
	}
	return errors.Join(errs...)
}
