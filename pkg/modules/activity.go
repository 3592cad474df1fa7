package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

const ActivityName = "activity"

// Activity keeps the bot's presence text in step with the online player
// count.
type Activity struct {
	worker.Base
	sys *bridge.SystemContext

	mu   sync.Mutex
	last string
}

func NewActivity(sys *bridge.SystemContext) *Activity {
	return &Activity{sys: sys}
}

func (a *Activity) Name() string { return ActivityName }

func (a *Activity) Triggers() bus.EventKind {
	return bus.TimerTick | bus.UserLogin | bus.UserLogout | bus.ConnectionEstablished
}

func (a *Activity) ShouldRun() bool {
	cfg := a.sys.Config()
	return cfg.Features.Activity && cfg.Discord.Activity != ""
}

func (a *Activity) Update(ctx context.Context, e bus.Event) error {
	if e.Kind.Has(bus.ConnectionEstablished) {
		// The gateway forgets presence across reconnects.
		a.mu.Lock()
		a.last = ""
		a.mu.Unlock()
	}

	text := a.text()
	a.mu.Lock()
	same := text == a.last
	a.mu.Unlock()
	if same {
		return nil
	}
	if err := a.sys.Platform.SetActivity(ctx, text); err != nil {
		return fmt.Errorf("set activity: %w", err)
	}
	a.mu.Lock()
	a.last = text
	a.mu.Unlock()
	return nil
}

func (a *Activity) text() string {
	if !a.sys.Game.Connected() {
		return "Server offline"
	}
	// Only the first %d is a placeholder; the rest of the text is literal.
	format := a.sys.Config().Discord.Activity
	return strings.Replace(format, "%d", strconv.Itoa(len(a.sys.Game.Online())), 1)
}
