package modules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
	"github.com/tinyland-inc/gamelink/pkg/render"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

const StatusName = "server-status"

const statusColor = 0x2ecc71

// ServerStatus keeps a live server summary in every link that lists the
// server-status display.
type ServerStatus struct {
	worker.Base
	sys *bridge.SystemContext
	now func() time.Time
}

func NewServerStatus(sys *bridge.SystemContext) *ServerStatus {
	return &ServerStatus{sys: sys, now: time.Now}
}

func (s *ServerStatus) Name() string { return StatusName }

func (s *ServerStatus) Triggers() bus.EventKind {
	return bus.TimerTick | bus.ForceUpdate | bus.ConnectionEstablished | bus.UserLogin | bus.UserLogout
}

func (s *ServerStatus) ShouldRun() bool { return s.sys.Config().Features.ServerStatus }

func (s *ServerStatus) Update(ctx context.Context, e bus.Event) error {
	if e.Kind.Has(bus.TimerTick) {
		if name, ok := bus.Find[string](e); ok && name != bridge.TimerDisplayRefresh {
			return nil
		}
	}
	if e.Kind.Has(bus.ForceUpdate) {
		s.sys.Displays.Invalidate(StatusName)
	}

	content := s.render()
	var errs []error
	for _, l := range s.sys.Links.WithDisplay(StatusName) {
		outcome, err := s.sys.Displays.Sync(ctx, StatusName, l.ChannelID, content)
		s.sys.Stats.DisplaySynced(StatusName, outcome.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", l.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Teardown drops in-memory tracking. The posted messages and persisted refs
// stay so the next run edits them again.
func (s *ServerStatus) Teardown(context.Context) {
	s.sys.Displays.Release(StatusName)
}

func (s *ServerStatus) Describe() string {
	return fmt.Sprintf("%d display links", len(s.sys.Links.WithDisplay(StatusName)))
}

func (s *ServerStatus) render() render.Content {
	cfg := s.sys.Config()
	st := s.sys.Game.Status()

	name := st.Name
	if name == "" {
		name = cfg.Game.ServerName
	}
	if name == "" {
		name = "Game server"
	}
	c := render.Content{
		Title:       name,
		Description: st.Description,
		Color:       statusColor,
	}

	if !s.sys.Game.Connected() {
		c.Color = 0
		c.AddField("Status", "Offline", true)
		c.Footer = "Last checked " + s.now().UTC().Format(time.RFC1123)
		return c
	}

	c.AddField("Status", "Online", true)
	players := fmt.Sprintf("%d", st.OnlinePlayers)
	if st.MaxPlayers > 0 {
		players = fmt.Sprintf("%d/%d", st.OnlinePlayers, st.MaxPlayers)
	}
	c.AddField("Players", players, true)
	if st.Day > 0 {
		c.AddField("Day", fmt.Sprintf("%d", st.Day), true)
	}
	if st.Laws > 0 || st.Elections > 0 {
		c.AddField("Government", fmt.Sprintf("%d laws, %d active elections", st.Laws, st.Elections), true)
	}
	if st.Address != "" {
		c.AddField("Address", st.Address, false)
	}
	if online := onlineNames(s.sys.Game.Online()); online != "" {
		c.AddField("Online now", online, false)
	}

	var footer []string
	if st.Version != "" {
		footer = append(footer, "Version "+st.Version)
	}
	if !st.StartedAt.IsZero() {
		footer = append(footer, "Up "+uptime(s.now().Sub(st.StartedAt)))
	}
	c.Footer = strings.Join(footer, " | ")
	return c
}

// onlineNames lists one player per line so long lists paginate cleanly.
func onlineNames(users []gameserver.User) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		n := u.Name
		if u.Admin {
			n += " (admin)"
		}
		names = append(names, n)
	}
	return strings.Join(names, "\n")
}

func uptime(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
