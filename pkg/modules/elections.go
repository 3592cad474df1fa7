package modules

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
	"github.com/tinyland-inc/gamelink/pkg/render"
)

const ElectionFeedName = "election-feed"

const (
	electionOpenColor   = 0x3498db
	electionPassedColor = 0x2ecc71
	electionFailedColor = 0xe74c3c
)

type ElectionFeed struct {
	feed
}

func NewElectionFeed(sys *bridge.SystemContext) *ElectionFeed {
	return &ElectionFeed{feed: newFeed(FeedElections, sys)}
}

func (f *ElectionFeed) Name() string { return ElectionFeedName }

func (f *ElectionFeed) Triggers() bus.EventKind {
	return bus.ElectionStarted | bus.ElectionFinished
}

func (f *ElectionFeed) ShouldRun() bool { return f.sys.Config().Features.ElectionFeed }

func (f *ElectionFeed) Update(ctx context.Context, e bus.Event) error {
	el, ok := bus.Find[gameserver.Election](e)
	if !ok {
		return nil
	}
	return f.post(ctx, renderElection(e.Kind, el))
}

func renderElection(kind bus.EventKind, el gameserver.Election) render.Content {
	c := render.Content{Description: el.Title}
	if kind.Has(bus.ElectionStarted) {
		c.Title = "Election started"
		c.Color = electionOpenColor
		if el.Proposer != "" {
			c.AddField("Proposed by", el.Proposer, true)
		}
		return c
	}

	c.Title = "Election finished"
	c.Color = electionFailedColor
	result := "Failed"
	if el.Passed {
		c.Color = electionPassedColor
		result = "Passed"
	}
	c.AddField("Result", result, true)
	if el.Winner != "" {
		c.AddField("Winner", el.Winner, true)
	}
	c.AddField("Votes", fmt.Sprintf("%d", el.Votes), true)
	return c
}
