package bridge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bridge/bridgetest"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/config"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
	"github.com/tinyland-inc/gamelink/pkg/modules"
	"github.com/tinyland-inc/gamelink/pkg/remote/remotetest"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

type recorder struct {
	worker.Base
	name     string
	triggers bus.EventKind
	run      func() bool

	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) Name() string            { return r.name }
func (r *recorder) Triggers() bus.EventKind { return r.triggers }

func (r *recorder) ShouldRun() bool {
	if r.run == nil {
		return true
	}
	return r.run()
}

func (r *recorder) Update(_ context.Context, e bus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(kind bus.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind.Has(kind) {
			n++
		}
	}
	return n
}

func newBridge(t *testing.T, mutate func(*config.Config)) (*bridge.Bridge, *remotetest.Platform) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Links = []config.LinkConfig{{Name: "main", GameChannel: "General", Guild: "Eco", Channel: "general"}}
	cfg.Timers.DisplayRefresh = 0
	cfg.Timers.ActivityRefresh = 0
	if mutate != nil {
		mutate(cfg)
	}
	p := remotetest.New("bot")
	p.AddGuild("g1", "Eco")
	p.AddChannel("g1", "c1", "general")

	sys, err := bridge.NewSystemContext(cfg, p, bridgetest.NewGame(), nil)
	require.NoError(t, err)
	b, err := bridge.New(sys)
	require.NoError(t, err)
	return b, p
}

func TestBridge_ConnectStartsWorkers(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.ConnectionEstablished | bus.ConnectionLost}
	require.NoError(t, b.Register(w))
	ctx := context.Background()

	b.Connect(ctx)
	state, err := b.System().Workers.State("w")
	require.NoError(t, err)
	assert.Equal(t, worker.StateRunning, state)
	assert.Eventually(t, func() bool { return w.count(bus.ConnectionEstablished) == 1 }, time.Second, time.Millisecond)

	l, ok := b.System().Links.Get("main")
	require.True(t, ok)
	assert.True(t, l.Validated)
	assert.Equal(t, "c1", l.ChannelID)

	st := b.Status()
	assert.True(t, st.DiscordConnected)
	assert.True(t, st.GameConnected)
	require.Len(t, st.Links, 1)
	assert.True(t, st.Links[0].Validated)
	require.Len(t, st.Workers, 1)
	assert.Equal(t, worker.StateRunning, st.Workers[0].State)
}

func TestBridge_ResumeDoesNotRestart(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.ConnectionEstablished}
	require.NoError(t, b.Register(w))
	ctx := context.Background()

	b.DiscordStateChanged(ctx, true)
	b.DiscordStateChanged(ctx, true)
	assert.Eventually(t, func() bool { return w.count(bus.ConnectionEstablished) == 2 }, time.Second, time.Millisecond)
	assert.True(t, b.Connected())
}

func TestBridge_DisconnectStopsWorkersAndInvalidatesLinks(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.Any}
	require.NoError(t, b.Register(w))
	ctx := context.Background()

	b.Connect(ctx)
	b.DiscordStateChanged(ctx, false)

	state, err := b.System().Workers.State("w")
	require.NoError(t, err)
	assert.Equal(t, worker.StateStopped, state)
	assert.False(t, b.Connected())
	l, _ := b.System().Links.Get("main")
	assert.False(t, l.Validated)
	assert.Zero(t, w.count(bus.ConnectionLost), "stopped workers see nothing")

	b.Connect(ctx)
	state, _ = b.System().Workers.State("w")
	assert.Equal(t, worker.StateRunning, state)
}

func TestBridge_TimersPublishTicksWhileConnected(t *testing.T) {
	b, _ := newBridge(t, func(c *config.Config) { c.Timers.DisplayRefresh = config.Duration(5 * time.Millisecond) })
	w := &recorder{name: "w", triggers: bus.TimerTick}
	require.NoError(t, b.Register(w))
	ctx := context.Background()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, w.count(bus.TimerTick), "timers wait for a connection")

	b.Connect(ctx)
	assert.Eventually(t, func() bool { return w.count(bus.TimerTick) >= 2 }, time.Second, time.Millisecond)

	b.Disconnect(ctx)
	n := w.count(bus.TimerTick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, w.count(bus.TimerTick))
}

func TestBridge_InvalidCron(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timers.RefreshCron = "every so often"
	sys, err := bridge.NewSystemContext(cfg, remotetest.New("bot"), bridgetest.NewGame(), nil)
	require.NoError(t, err)
	_, err = bridge.New(sys)
	assert.Error(t, err)
}

func TestBridge_GameReconnectRefreshes(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.ConnectionEstablished}
	require.NoError(t, b.Register(w))

	b.GameStateChanged(true)
	assert.Zero(t, b.System().Bus.Published(), "nothing before discord is up")

	b.Connect(context.Background())
	b.GameStateChanged(true)
	b.GameStateChanged(false)
	assert.Eventually(t, func() bool { return w.count(bus.ConnectionEstablished) == 2 }, time.Second, time.Millisecond)
}

func TestBridge_Shutdown(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.Any}
	require.NoError(t, b.Register(w))
	ctx := context.Background()

	b.Connect(ctx)
	b.Shutdown(ctx)

	state, _ := b.System().Workers.State("w")
	assert.Equal(t, worker.StateDestroyed, state)
	assert.True(t, b.System().Bus.IsClosed())

	b.Connect(ctx)
	state, _ = b.System().Workers.State("w")
	assert.Equal(t, worker.StateDestroyed, state, "destroyed workers never restart")
}

func TestSystemContext_UpdateConfig(t *testing.T) {
	b, _ := newBridge(t, nil)
	enabled := true
	sys := b.System()
	w := &recorder{name: "w", triggers: bus.ConfigChanged, run: func() bool { return enabled }}
	require.NoError(t, b.Register(w))
	ctx := context.Background()
	b.Connect(ctx)

	cfg := *sys.Config()
	cfg.Links = append(cfg.Links, config.LinkConfig{Name: "bad", GameChannel: "x", Guild: "Nope", Channel: "y"})
	enabled = false
	report, err := sys.UpdateConfig(ctx, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed())
	assert.Len(t, sys.Links.All(), 2)

	state, _ := sys.Workers.State("w")
	assert.Equal(t, worker.StateStopped, state)

	bad := cfg
	bad.Links = []config.LinkConfig{{Name: "dup", GameChannel: "a"}, {Name: "dup", GameChannel: "b"}}
	_, err = sys.UpdateConfig(ctx, &bad)
	assert.Error(t, err)
	assert.Len(t, sys.Links.All(), 2, "rejected config leaves links alone")
}

func newTradeBridge(t *testing.T, flush time.Duration) (*bridge.Bridge, *remotetest.Platform, *modules.TradeFeed) {
	t.Helper()
	b, p := newBridge(t, func(c *config.Config) {
		c.Features.TradeFeed = true
		c.Timers.AggregationFlush = config.Duration(flush)
		c.Links[0].Feeds = []string{modules.FeedTrades}
	})
	feed := modules.NewTradeFeed(b.System())
	require.NoError(t, b.Register(feed))
	return b, p, feed
}

func publishTrade(t *testing.T, b *bridge.Bridge, feed *modules.TradeFeed) {
	t.Helper()
	_, err := b.System().Bus.Publish(bus.TradeCompleted, gameserver.Trade{Buyer: "a", Seller: "b", Item: "x", Quantity: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return feed.Describe() == "1 pending trade groups" }, time.Second, time.Millisecond)
}

func TestBridge_BufferedTradesSurviveDisconnect(t *testing.T) {
	b, p, feed := newTradeBridge(t, 100*time.Millisecond)
	ctx := context.Background()
	b.Connect(ctx)

	publishTrade(t, b, feed)
	b.Disconnect(ctx)
	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, p.Calls("send"), "no flush while disconnected")
	assert.Equal(t, "1 pending trade groups", feed.Describe())

	b.Connect(ctx)
	assert.Eventually(t, func() bool { return len(p.Calls("send")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "c1", p.Calls("send")[0].Ref.ChannelID)
}

func TestBridge_ShutdownPostsBufferedTrades(t *testing.T) {
	b, p, feed := newTradeBridge(t, time.Hour)
	ctx := context.Background()
	b.Connect(ctx)

	publishTrade(t, b, feed)
	b.Shutdown(ctx)
	assert.Len(t, p.Calls("send"), 1)
	l, _ := b.System().Links.Get("main")
	assert.False(t, l.Validated)
}

func TestBridge_ReloadReschedulesTimers(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.TimerTick}
	require.NoError(t, b.Register(w))
	ctx := context.Background()
	b.Connect(ctx)

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, w.count(bus.TimerTick))

	cfg := *b.System().Config()
	cfg.Timers.DisplayRefresh = config.Duration(5 * time.Millisecond)
	_, err := b.Reload(ctx, &cfg)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return w.count(bus.TimerTick) >= 2 }, time.Second, time.Millisecond)

	bad := cfg
	bad.Timers.RefreshCron = "whenever"
	_, err = b.Reload(ctx, &bad)
	assert.Error(t, err)
	assert.Equal(t, cfg.Timers, b.System().Config().Timers, "rejected config is not applied")
}

func TestBridge_ReloadTogglesWorkers(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.MessageSent}
	feed := &recorder{name: "feed", triggers: bus.MessageSent, run: func() bool {
		return b.System().Config().Features.ChatRelay
	}}
	require.NoError(t, b.Register(w, feed))
	ctx := context.Background()
	b.Connect(ctx)
	st, _ := b.System().Workers.State("feed")
	require.Equal(t, worker.StateRunning, st)

	cfg := *b.System().Config()
	cfg.Features.ChatRelay = false
	report, err := b.Reload(ctx, &cfg)
	require.NoError(t, err)
	assert.True(t, report.OK())

	st, _ = b.System().Workers.State("feed")
	assert.Equal(t, worker.StateStopped, st)
	st, _ = b.System().Workers.State("w")
	assert.Equal(t, worker.StateRunning, st)
}

func TestBridge_ReloadWhileDisconnected(t *testing.T) {
	b, _ := newBridge(t, nil)
	w := &recorder{name: "w", triggers: bus.Any}
	require.NoError(t, b.Register(w))
	ctx := context.Background()
	b.Connect(ctx)
	b.Disconnect(ctx)

	cfg := *b.System().Config()
	_, err := b.Reload(ctx, &cfg)
	require.NoError(t, err)

	st, _ := b.System().Workers.State("w")
	assert.Equal(t, worker.StateStopped, st)
	l, _ := b.System().Links.Get("main")
	assert.False(t, l.Validated)

	b.Connect(ctx)
	l, _ = b.System().Links.Get("main")
	assert.True(t, l.Validated)
}
