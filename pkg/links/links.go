// Package links maps game chat channels onto Discord guild channels.
//
// A link is only usable once Verify has resolved its guild and channel
// against the live session; platform ids are not resolvable before connect,
// so verification runs again after every reconnect.
package links

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/gamelink/pkg/config"
	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/remote"
)

// Direction selects which way chat may flow across a link.
type Direction int

const (
	Duplex Direction = iota
	GameToDiscord
	DiscordToGame
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", config.DirectionDuplex:
		return Duplex, nil
	case config.DirectionGameToDiscord:
		return GameToDiscord, nil
	case config.DirectionDiscordToGame:
		return DiscordToGame, nil
	}
	return Duplex, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) String() string {
	switch d {
	case GameToDiscord:
		return config.DirectionGameToDiscord
	case DiscordToGame:
		return config.DirectionDiscordToGame
	default:
		return config.DirectionDuplex
	}
}

// Outbound reports whether game chat may be relayed to Discord.
func (d Direction) Outbound() bool { return d != DiscordToGame }

// Inbound reports whether Discord chat may be relayed into the game.
func (d Direction) Inbound() bool { return d != GameToDiscord }

// MentionPolicy controls whether @everyone and @here survive relaying.
type MentionPolicy int

const (
	Forbidden MentionPolicy = iota
	AdminOnly
	AnyUser
)

func ParseMentionPolicy(s string) (MentionPolicy, error) {
	switch s {
	case "", config.MentionsForbidden:
		return Forbidden, nil
	case config.MentionsAdminOnly:
		return AdminOnly, nil
	case config.MentionsAnyUser:
		return AnyUser, nil
	}
	return Forbidden, fmt.Errorf("unknown mention policy %q", s)
}

func (p MentionPolicy) String() string {
	switch p {
	case AdminOnly:
		return config.MentionsAdminOnly
	case AnyUser:
		return config.MentionsAnyUser
	default:
		return config.MentionsForbidden
	}
}

// AllowsBroadcast reports whether a sender may ping @everyone/@here.
func (p MentionPolicy) AllowsBroadcast(senderIsAdmin bool) bool {
	return p == AnyUser || (p == AdminOnly && senderIsAdmin)
}

type Link struct {
	Name         string
	LocalChannel string
	GuildRef     string
	ChannelRef   string
	Direction    Direction
	Mentions     MentionPolicy
	Feeds        []string
	Displays     []string
	AllowedRoles []string

	// Resolved by Verify.
	GuildID   string
	ChannelID string
	Validated bool
}

func (l Link) HasFeed(name string) bool { return slices.Contains(l.Feeds, name) }
func (l Link) HasDisplay(name string) bool { return slices.Contains(l.Displays, name) }

// RoleAllowed reports whether a Discord member holding roles may relay into
// the game. An empty allow list admits everyone.
func (l Link) RoleAllowed(roles []string) bool {
	if len(l.AllowedRoles) == 0 {
		return true
	}
	for _, r := range roles {
		if slices.Contains(l.AllowedRoles, r) {
			return true
		}
	}
	return false
}

func FromConfig(c config.LinkConfig) (Link, error) {
	dir, err := ParseDirection(c.Direction)
	if err != nil {
		return Link{}, err
	}
	mentions, err := ParseMentionPolicy(c.Mentions)
	if err != nil {
		return Link{}, err
	}
	name := c.Name
	if name == "" {
		name = c.GameChannel
	}
	return Link{
		Name:         name,
		LocalChannel: c.GameChannel,
		GuildRef:     c.Guild,
		ChannelRef:   c.Channel,
		Direction:    dir,
		Mentions:     mentions,
		Feeds:        slices.Clone(c.Feeds),
		Displays:     slices.Clone(c.Displays),
		AllowedRoles: slices.Clone(c.AllowedRoles),
	}, nil
}

// Resolver is the subset of remote.Platform used for verification.
type Resolver interface {
	ResolveGuild(ctx context.Context, nameOrID string) (remote.Guild, bool)
	ResolveChannel(ctx context.Context, guildID, nameOrID string) (remote.Channel, bool)
}

type Registry struct {
	mu    sync.RWMutex
	links []Link
}

func NewRegistry(cfgs []config.LinkConfig) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(cfgs); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace swaps in a new link set. Every link starts unverified.
func (r *Registry) Replace(cfgs []config.LinkConfig) error {
	links := make([]Link, 0, len(cfgs))
	for i, c := range cfgs {
		l, err := FromConfig(c)
		if err != nil {
			return fmt.Errorf("link %d: %w", i, err)
		}
		links = append(links, l)
	}
	r.mu.Lock()
	r.links = links
	r.mu.Unlock()
	return nil
}

// All returns a copy of every link, verified or not.
func (r *Registry) All() []Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.links)
}

func (r *Registry) Get(name string) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.links {
		if l.Name == name {
			return l, true
		}
	}
	return Link{}, false
}

func (r *Registry) filter(keep func(Link) bool) []Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Link
	for _, l := range r.links {
		if l.Validated && keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// ByLocal returns the verified links for a game channel.
func (r *Registry) ByLocal(channel string) []Link {
	return r.filter(func(l Link) bool { return strings.EqualFold(l.LocalChannel, channel) })
}

// ByRemote returns the verified link bound to a Discord channel.
func (r *Registry) ByRemote(guildID, channelID string) (Link, bool) {
	found := r.filter(func(l Link) bool { return l.GuildID == guildID && l.ChannelID == channelID })
	if len(found) == 0 {
		return Link{}, false
	}
	return found[0], true
}

// WithFeed returns the verified links subscribed to a feed.
func (r *Registry) WithFeed(feed string) []Link {
	return r.filter(func(l Link) bool { return l.HasFeed(feed) })
}

// WithDisplay returns the verified links that host a display.
func (r *Registry) WithDisplay(display string) []Link {
	return r.filter(func(l Link) bool { return l.HasDisplay(display) })
}

// Invalidate marks every link unverified, typically on connection loss.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.links {
		r.links[i].Validated = false
		r.links[i].GuildID = ""
		r.links[i].ChannelID = ""
	}
}

// ReportEntry describes the verification outcome of a single link.
type ReportEntry struct {
	Link    Link
	Problem string
}

func (e ReportEntry) OK() bool { return e.Problem == "" }

type Report struct {
	Entries []ReportEntry
}

func (r Report) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if !e.OK() {
			n++
		}
	}
	return n
}

func (r Report) OK() bool { return r.Failed() == 0 }

const verifyConcurrency = 4

// Verify resolves every link against the session and records the result on
// the registry. Unresolved links are reported, not returned as errors.
func (r *Registry) Verify(ctx context.Context, res Resolver) Report {
	links := r.All()
	entries := make([]ReportEntry, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)
	for i, l := range links {
		g.Go(func() error {
			entries[i] = verifyLink(gctx, res, l)
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	for _, e := range entries {
		for i := range r.links {
			if r.links[i].Name == e.Link.Name {
				r.links[i].GuildID = e.Link.GuildID
				r.links[i].ChannelID = e.Link.ChannelID
				r.links[i].Validated = e.Link.Validated
			}
		}
	}
	r.mu.Unlock()

	report := Report{Entries: entries}
	for _, e := range entries {
		if !e.OK() {
			logger.WarnCF("links", "Link not verified", map[string]any{
				"link":    e.Link.Name,
				"guild":   e.Link.GuildRef,
				"channel": e.Link.ChannelRef,
				"problem": e.Problem,
			})
		}
	}
	logger.InfoCF("links", "Links verified", map[string]any{
		"total":  len(entries),
		"failed": report.Failed(),
	})
	return report
}

func verifyLink(ctx context.Context, res Resolver, l Link) ReportEntry {
	l.Validated, l.GuildID, l.ChannelID = false, "", ""
	if ctx.Err() != nil {
		return ReportEntry{Link: l, Problem: ctx.Err().Error()}
	}
	guild, ok := res.ResolveGuild(ctx, l.GuildRef)
	if !ok {
		return ReportEntry{Link: l, Problem: fmt.Sprintf("guild %q not found", l.GuildRef)}
	}
	l.GuildID = guild.ID
	ch, ok := res.ResolveChannel(ctx, guild.ID, l.ChannelRef)
	if !ok {
		return ReportEntry{Link: l, Problem: fmt.Sprintf("channel %q not found in guild %q", l.ChannelRef, guild.Name)}
	}
	l.ChannelID = ch.ID
	l.Validated = true
	return ReportEntry{Link: l}
}
