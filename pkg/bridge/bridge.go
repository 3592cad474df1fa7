package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/config"
	"github.com/tinyland-inc/gamelink/pkg/links"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/timers"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

// Timer names carried as the string payload of TimerTick events.
const (
	TimerDisplayRefresh = "display-refresh"
	TimerActivity       = "activity"
)

// Status is the snapshot served on the health /status endpoint.
type Status struct {
	DiscordConnected bool            `json:"discord_connected"`
	GameConnected    bool            `json:"game_connected"`
	Workers          []worker.Status `json:"workers"`
	Links            []LinkStatus    `json:"links"`
}

type LinkStatus struct {
	Name      string `json:"name"`
	ChannelID string `json:"channel_id,omitempty"`
	Validated bool   `json:"validated"`
	Problem   string `json:"problem,omitempty"`
}

// Bridge drives the worker lifecycle from connection state changes.
//
// On a Discord ready it verifies links, sets up and starts workers, starts
// timers and publishes ConnectionEstablished. On a disconnect it stops
// timers, then workers (and with them their own flush loops), then
// invalidates links.
type Bridge struct {
	sys    *SystemContext
	timers *timers.Scheduler

	// opMu serializes Connect, Disconnect and Shutdown.
	opMu sync.Mutex

	mu        sync.Mutex
	connected bool
	report    links.Report
}

func New(sys *SystemContext) (*Bridge, error) {
	b := &Bridge{sys: sys}
	sched, err := b.schedule(sys.Config().Timers)
	if err != nil {
		return nil, err
	}
	b.timers = sched
	return b, nil
}

func (b *Bridge) System() *SystemContext { return b.sys }

func (b *Bridge) schedule(t config.TimersConfig) (*timers.Scheduler, error) {
	sched := timers.NewScheduler()
	refresh := b.tick(TimerDisplayRefresh)
	if t.RefreshCron != "" {
		if err := sched.Cron(TimerDisplayRefresh, t.RefreshCron, refresh); err != nil {
			return nil, err
		}
	} else if t.DisplayRefresh > 0 {
		if err := sched.Every(TimerDisplayRefresh, t.DisplayRefresh.Std(), refresh); err != nil {
			return nil, err
		}
	}
	if t.ActivityRefresh > 0 {
		if err := sched.Every(TimerActivity, t.ActivityRefresh.Std(), b.tick(TimerActivity)); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func (b *Bridge) tick(name string) func(context.Context) {
	return func(context.Context) {
		if _, err := b.sys.Bus.Publish(bus.TimerTick, name); err != nil {
			logger.DebugCF("bridge", "Timer tick dropped", map[string]any{
				"timer": name,
				"error": err.Error(),
			})
		}
	}
}

// Register adds workers to the manager in order.
func (b *Bridge) Register(ws ...worker.Worker) error {
	for _, w := range ws {
		if err := b.sys.Workers.Register(w); err != nil {
			return err
		}
	}
	return nil
}

// DiscordStateChanged is the discord session state hook.
func (b *Bridge) DiscordStateChanged(ctx context.Context, up bool) {
	if up {
		b.Connect(ctx)
		return
	}
	b.Disconnect(ctx)
}

// GameStateChanged republishes ConnectionEstablished when the game server
// comes back so displays refresh right away.
func (b *Bridge) GameStateChanged(up bool) {
	b.mu.Lock()
	connected := b.connected
	b.mu.Unlock()
	if !up || !connected {
		return
	}
	if _, err := b.sys.Bus.Publish(bus.ConnectionEstablished, "game"); err != nil {
		logger.DebugCF("bridge", "Publish rejected", map[string]any{"error": err.Error()})
	}
}

// Connect is idempotent; a resume while connected only re-verifies links.
func (b *Bridge) Connect(ctx context.Context) {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	report := b.sys.Links.Verify(ctx, b.sys.Platform)

	b.mu.Lock()
	b.report = report
	already := b.connected
	b.connected = true
	b.mu.Unlock()

	if !already {
		b.sys.Workers.Connect(ctx)
		b.timers.Start(context.WithoutCancel(ctx))
	}
	if _, err := b.sys.Bus.Publish(bus.ConnectionEstablished, "discord"); err != nil {
		logger.WarnCF("bridge", "Failed to publish connection event", map[string]any{"error": err.Error()})
	}
	logger.InfoCF("bridge", "Bridge connected", map[string]any{
		"links":        len(report.Entries),
		"links_failed": report.Failed(),
	})
}

func (b *Bridge) Disconnect(ctx context.Context) {
	b.opMu.Lock()
	defer b.opMu.Unlock()
	b.disconnect(ctx)
}

func (b *Bridge) disconnect(ctx context.Context) {
	if !b.markDisconnected() {
		return
	}
	b.timers.Stop()
	b.sys.Workers.Disconnect(ctx)
	b.lost()
	logger.InfoC("bridge", "Bridge disconnected")
}

func (b *Bridge) markDisconnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	was := b.connected
	b.connected = false
	return was
}

// lost invalidates links once no worker is running, so nothing posts to a
// link that is about to be re-verified.
func (b *Bridge) lost() {
	b.sys.Links.Invalidate()
	if _, err := b.sys.Bus.Publish(bus.ConnectionLost); err != nil {
		logger.DebugCF("bridge", "Publish rejected", map[string]any{"error": err.Error()})
	}
}

// Shutdown destroys every worker and closes the bus. Workers are torn down
// while links are still verified so buffered feed output is posted. Remote
// messages are left in place.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.opMu.Lock()
	defer b.opMu.Unlock()
	was := b.markDisconnected()
	b.timers.Stop()
	b.sys.Workers.Shutdown(ctx)
	if was {
		b.lost()
	}
	b.sys.Bus.Close()
	logger.InfoC("bridge", "Bridge shut down")
}

// Reload applies a new configuration: links are rebuilt and re-verified,
// ConfigChanged re-evaluates which workers run, and timers are rescheduled
// when their settings changed. A rejected config leaves everything as it was.
// While disconnected the rebuilt links stay unverified until the next
// Connect.
func (b *Bridge) Reload(ctx context.Context, cfg *config.Config) (links.Report, error) {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	var sched *timers.Scheduler
	if cfg.Timers != b.sys.Config().Timers {
		var err error
		if sched, err = b.schedule(cfg.Timers); err != nil {
			return links.Report{}, err
		}
	}
	report, err := b.sys.UpdateConfig(ctx, cfg)
	if err != nil && !errors.Is(err, bus.ErrBusClosed) {
		return report, err
	}

	b.mu.Lock()
	connected := b.connected
	b.report = report
	b.mu.Unlock()

	if !connected {
		b.sys.Links.Invalidate()
	}
	if sched != nil {
		b.timers.Stop()
		b.timers = sched
		if connected {
			b.timers.Start(context.WithoutCancel(ctx))
		}
		logger.InfoCF("bridge", "Timers rescheduled", map[string]any{"jobs": len(sched.Jobs())})
	}
	return report, err
}

func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Bridge) Status() Status {
	b.mu.Lock()
	st := Status{DiscordConnected: b.connected}
	for _, e := range b.report.Entries {
		st.Links = append(st.Links, LinkStatus{
			Name:      e.Link.Name,
			ChannelID: e.Link.ChannelID,
			Validated: e.Link.Validated,
			Problem:   e.Problem,
		})
	}
	b.mu.Unlock()
	if b.sys.Game != nil {
		st.GameConnected = b.sys.Game.Connected()
	}
	st.Workers = b.sys.Workers.States()
	return st
}
