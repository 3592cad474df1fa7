package display

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gamelink/pkg/remote"
	"github.com/tinyland-inc/gamelink/pkg/remote/remotetest"
	"github.com/tinyland-inc/gamelink/pkg/render"
)

func statusContent(players int) render.Content {
	c := render.Content{Title: "Server", Footer: "updated"}
	c.AddField("Players", fmt.Sprint(players), true)
	return c
}

func TestSync_FirstCallSends(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	out, err := s.Sync(ctx, "status", "c1", statusContent(3))
	require.NoError(t, err)
	assert.Equal(t, Sent, out)

	ref, ok := s.Tracked(ctx, "status", "c1")
	require.True(t, ok)
	assert.Equal(t, "c1", ref.ChannelID)
	assert.Len(t, p.Calls("send"), 1)
}

func TestSync_SecondCallEdits(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	_, err := s.Sync(ctx, "status", "c1", statusContent(3))
	require.NoError(t, err)
	out, err := s.Sync(ctx, "status", "c1", statusContent(4))
	require.NoError(t, err)
	assert.Equal(t, Edited, out)

	edits := p.Calls("edit")
	require.Len(t, edits, 1)
	assert.Equal(t, "4", edits[0].Content.Fields[0].Text)
	assert.Len(t, p.Calls("send"), 1)
}

func TestSync_UnchangedSkipsEdit(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	_, _ = s.Sync(ctx, "status", "c1", statusContent(3))
	out, err := s.Sync(ctx, "status", "c1", statusContent(3))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, out)
	assert.Empty(t, p.Calls("edit"))

	s.Invalidate("status")
	out, err = s.Sync(ctx, "status", "c1", statusContent(3))
	require.NoError(t, err)
	assert.Equal(t, Edited, out)
}

func TestSync_NotFoundResendsOnNextCall(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	_, err := s.Sync(ctx, "status", "c1", statusContent(1))
	require.NoError(t, err)
	ref, _ := s.Tracked(ctx, "status", "c1")
	p.Vanish(ref)

	out, err := s.Sync(ctx, "status", "c1", statusContent(2))
	require.NoError(t, err)
	assert.Equal(t, Cleared, out)
	assert.Len(t, p.Calls("send"), 1, "no resend within the same call")
	_, ok := s.Tracked(ctx, "status", "c1")
	assert.False(t, ok)

	p.Reset()
	out, err = s.Sync(ctx, "status", "c1", statusContent(2))
	require.NoError(t, err)
	assert.Equal(t, Sent, out)
	assert.Len(t, p.Calls("send"), 1)
	assert.Empty(t, p.Calls("edit"))
}

func TestSync_OtherErrorsKeepRef(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	_, err := s.Sync(ctx, "status", "c1", statusContent(1))
	require.NoError(t, err)
	before, _ := s.Tracked(ctx, "status", "c1")

	p.FailWith = remote.Wrap(remote.ErrTransient, fmt.Errorf("502"))
	out, err := s.Sync(ctx, "status", "c1", statusContent(2))
	assert.Equal(t, Failed, out)
	assert.ErrorIs(t, err, remote.ErrTransient)

	after, ok := s.Tracked(ctx, "status", "c1")
	assert.True(t, ok)
	assert.Equal(t, before, after)

	p.FailWith = nil
	out, err = s.Sync(ctx, "status", "c1", statusContent(2))
	require.NoError(t, err)
	assert.Equal(t, Edited, out)
}

func TestSync_MultiPageTracksTail(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	c := render.Content{Title: "Players", Footer: "end"}
	for i := 0; i < 30; i++ {
		c.AddField(fmt.Sprintf("player-%02d", i), strings.Repeat("x", 40), true)
	}

	out, err := s.Sync(ctx, "players", "c1", c)
	require.NoError(t, err)
	assert.Equal(t, Sent, out)

	sends := p.Calls("send")
	require.Len(t, sends, 2)
	ref, _ := s.Tracked(ctx, "players", "c1")
	assert.Equal(t, sends[1].Ref, ref)

	c.Fields[0].Text = "changed"
	_, err = s.Sync(ctx, "players", "c1", c)
	require.NoError(t, err)
	edits := p.Calls("edit")
	require.Len(t, edits, 1)
	assert.Equal(t, ref, edits[0].Ref)
	assert.Equal(t, "Players (1)", edits[0].Content.Title)
}

func TestSync_PartialSendTracksPostedPage(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	c := render.Content{Title: "Players", Footer: "end"}
	for i := 0; i < 60; i++ {
		c.AddField(fmt.Sprintf("player-%02d", i), strings.Repeat("x", 40), true)
	}
	require.Len(t, render.Paginate(c), 3)

	p.FailSendsAfter(1, remote.Wrap(remote.ErrTransient, fmt.Errorf("502")))
	out, err := s.Sync(ctx, "players", "c1", c)
	assert.ErrorIs(t, err, remote.ErrTransient)
	assert.Equal(t, Failed, out)

	sends := p.Calls("send")
	require.Len(t, sends, 1)
	ref, ok := s.Tracked(ctx, "players", "c1")
	require.True(t, ok)
	assert.Equal(t, sends[0].Ref, ref)

	p.FailSendsAfter(0, nil)
	out, err = s.Sync(ctx, "players", "c1", c)
	require.NoError(t, err)
	assert.Equal(t, Edited, out, "same content is retried as an edit")
	assert.Len(t, p.Calls("send"), 1, "earlier pages are not posted again")
}

func TestForget(t *testing.T) {
	p := remotetest.New("bot")
	s := NewSynchronizer(p, nil)
	ctx := context.Background()

	_, _ = s.Sync(ctx, "status", "c1", statusContent(1))
	_, _ = s.Sync(ctx, "status", "c2", statusContent(1))
	_, _ = s.Sync(ctx, "other", "c1", statusContent(1))

	require.NoError(t, s.Forget(ctx, "status"))
	_, ok := s.Tracked(ctx, "status", "c1")
	assert.False(t, ok)
	_, ok = s.Tracked(ctx, "status", "c2")
	assert.False(t, ok)
	_, ok = s.Tracked(ctx, "other", "c1")
	assert.True(t, ok)
	assert.Empty(t, p.Calls("delete"), "forgetting never deletes remote messages")
}
