package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal"
	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/config"
	"github.com/tinyland-inc/gamelink/pkg/discord"
	"github.com/tinyland-inc/gamelink/pkg/display"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
	"github.com/tinyland-inc/gamelink/pkg/health"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/metrics"
	"github.com/tinyland-inc/gamelink/pkg/modules"
	"github.com/tinyland-inc/gamelink/pkg/relay"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

const shutdownTimeout = 10 * time.Second

// lateBus forwards to the system bus. Both connections are built before the
// system context that owns the bus, so it is filled in afterwards.
type lateBus struct {
	sys *bridge.SystemContext
}

func (l *lateBus) Publish(kind bus.EventKind, payload ...any) (bus.Event, error) {
	if l.sys == nil {
		return bus.Event{}, bus.ErrBusClosed
	}
	return l.sys.Bus.Publish(kind, payload...)
}

func gatewayCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	internal.SetupLogging(cfg, debug)

	if cfg.Discord.Token == "" {
		return fmt.Errorf("discord token is not configured; run `gamelink auth discord`")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, closeStore, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	pub := &lateBus{}
	var b *bridge.Bridge

	breaker := discord.DefaultBreakerConfig()
	breaker.OnStateChange = m.BreakerChanged
	session, err := discord.New(cfg.Discord.Token, pub,
		discord.WithBreaker(breaker),
		discord.WithStateHook(func(up bool) {
			m.SetConnected("discord", up)
			b.DiscordStateChanged(ctx, up)
		}),
	)
	if err != nil {
		return err
	}

	game := gameserver.NewClient(cfg.Game, pub, gameserver.WithStateHook(func(up bool) {
		m.SetConnected("game", up)
		b.GameStateChanged(up)
	}))

	sys, err := bridge.NewSystemContext(cfg, session, game, store, worker.WithObserver(m))
	if err != nil {
		return err
	}
	sys.Stats = m
	sys.Bus.Register(m)
	pub.sys = sys

	b, err = bridge.New(sys)
	if err != nil {
		return err
	}
	workers := append([]worker.Worker{relay.NewOutbound(sys), relay.NewInbound(sys)}, modules.All(sys)...)
	if err := b.Register(workers...); err != nil {
		return err
	}

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port).WithMetrics(m.Registry)
	healthServer.RegisterCheck("discord", func() error {
		if !b.Connected() {
			return errors.New("discord gateway not ready")
		}
		return nil
	})
	healthServer.RegisterCheck("game", func() error {
		if !game.Connected() {
			return gameserver.ErrNotConnected
		}
		return nil
	})
	healthServer.SetStatus(func() any { return b.Status() })
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
		}
	}()
	fmt.Printf("✓ Health endpoints available at http://%s/health, /ready and /metrics\n", cfg.GatewayAddr())

	gameDone := make(chan struct{})
	go func() {
		defer close(gameDone)
		if cfg.Game.WSURL == "" {
			logger.WarnC("gameserver", "No game server url configured; relaying Discord events only")
			return
		}
		if err := game.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorCF("gameserver", "Game server client stopped", map[string]any{"error": err.Error()})
		}
	}()

	if err := session.Open(); err != nil {
		stop()
		<-gameDone
		return err
	}
	fmt.Printf("%s Bridge running with %d links. Press Ctrl+C to stop, send SIGHUP to reload config\n", internal.Logo, len(cfg.Links))

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				_ = reloadConfig(ctx, b, debug)
			}
		}
	}()

	<-ctx.Done()
	fmt.Println("\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	<-gameDone
	b.Shutdown(shutdownCtx)
	if err := session.Close(); err != nil {
		logger.WarnCF("discord", "Close failed", map[string]any{"error": err.Error()})
	}
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.WarnCF("health", "Health server stop failed", map[string]any{"error": err.Error()})
	}
	fmt.Println("✓ Gateway stopped")
	return nil
}

// reloadConfig re-reads the config file and applies it to the running bridge.
// Connection settings are only read at startup.
func reloadConfig(ctx context.Context, b *bridge.Bridge, debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		logger.ErrorCF("gateway", "Config reload failed", map[string]any{"error": err.Error()})
		return err
	}
	old := b.System().Config()
	report, err := b.Reload(ctx, cfg)
	if err != nil {
		logger.ErrorCF("gateway", "Config rejected", map[string]any{"error": err.Error()})
		return err
	}
	internal.SetupLogging(cfg, debug)
	if cfg.Discord.Token != old.Discord.Token || cfg.Game.WSURL != old.Game.WSURL || cfg.Game.Token != old.Game.Token || cfg.Storage != old.Storage || cfg.Gateway != old.Gateway {
		logger.WarnC("gateway", "Connection, storage and gateway settings take effect after a restart")
	}
	logger.InfoCF("gateway", "Config reloaded", map[string]any{
		"links":        len(report.Entries),
		"links_failed": report.Failed(),
	})
	return nil
}

// newStore picks redis when an address is configured and memory otherwise.
func newStore(ctx context.Context, cfg config.StorageConfig) (display.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return display.NewMemoryStore(), func() {}, nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	logger.InfoCF("display", "Tracking displays in redis", map[string]any{
		"addr":     cfg.RedisAddr,
		"instance": cfg.Instance,
	})
	return display.NewRedisStore(client, cfg.Instance), func() { _ = client.Close() }, nil
}
