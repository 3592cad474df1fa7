package bridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/config"
	"github.com/tinyland-inc/gamelink/pkg/display"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
	"github.com/tinyland-inc/gamelink/pkg/links"
	"github.com/tinyland-inc/gamelink/pkg/remote"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

// GameServer is what workers may ask of the game connection.
type GameServer interface {
	SendChat(ctx context.Context, channel, author, text string) error
	Connected() bool
	Status() gameserver.Status
	Users() []gameserver.User
	Online() []gameserver.User
	User(idOrName string) (gameserver.User, bool)
}

// Recorder receives module-level activity, typically for metrics.
type Recorder interface {
	DisplaySynced(worker, outcome string)
	FeedPosted(feed string)
}

type nopRecorder struct{}

func (nopRecorder) DisplaySynced(string, string) {}
func (nopRecorder) FeedPosted(string)            {}

// SystemContext is handed to every worker at construction. It replaces
// global accessors: the bus, the registries, both connections and the
// current configuration snapshot.
type SystemContext struct {
	Bus      *bus.EventBus
	Workers  *worker.Manager
	Links    *links.Registry
	Platform remote.Platform
	Game     GameServer
	Displays *display.Synchronizer
	Stats    Recorder

	cfg atomic.Pointer[config.Config]
}

func NewSystemContext(cfg *config.Config, platform remote.Platform, game GameServer, store display.Store, opts ...worker.ManagerOption) (*SystemContext, error) {
	reg, err := links.NewRegistry(cfg.Links)
	if err != nil {
		return nil, fmt.Errorf("links: %w", err)
	}
	sys := &SystemContext{
		Bus:      bus.NewEventBus(),
		Workers:  worker.NewManager(opts...),
		Links:    reg,
		Platform: platform,
		Game:     game,
		Displays: display.NewSynchronizer(platform, store),
		Stats:    nopRecorder{},
	}
	sys.cfg.Store(cfg)
	sys.Bus.Register(sys.Workers)
	return sys, nil
}

// Config returns the current configuration snapshot. Callers must not
// mutate it.
func (s *SystemContext) Config() *config.Config {
	return s.cfg.Load()
}

// UpdateConfig swaps in a validated configuration, rebuilds the link
// registry, re-verifies links against the session and publishes
// ConfigChanged.
func (s *SystemContext) UpdateConfig(ctx context.Context, cfg *config.Config) (links.Report, error) {
	if err := cfg.Validate(); err != nil {
		return links.Report{}, err
	}
	if err := s.Links.Replace(cfg.Links); err != nil {
		return links.Report{}, err
	}
	s.cfg.Store(cfg)
	report := s.Links.Verify(ctx, s.Platform)
	if _, err := s.Bus.Publish(bus.ConfigChanged, cfg); err != nil {
		return report, err
	}
	return report, nil
}
