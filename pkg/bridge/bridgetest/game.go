// Package bridgetest provides an in-memory game server for worker tests.
package bridgetest

import (
	"context"
	"strings"
	"sync"

	"github.com/tinyland-inc/gamelink/pkg/gameserver"
)

// Said is one chat line injected into the game.
type Said struct {
	Channel, Author, Text string
}

// Game implements bridge.GameServer. It starts connected with no users.
type Game struct {
	mu      sync.Mutex
	offline bool
	status  gameserver.Status
	users   []gameserver.User
	said    []Said

	// FailWith, when set, is returned by SendChat.
	FailWith error
}

func NewGame() *Game {
	return &Game{}
}

func (g *Game) SendChat(_ context.Context, channel, author, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return g.FailWith
	}
	g.said = append(g.said, Said{channel, author, text})
	return nil
}

func (g *Game) Said() []Said {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Said(nil), g.said...)
}

func (g *Game) SetConnected(up bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offline = !up
}

func (g *Game) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.offline
}

func (g *Game) SetStatus(st gameserver.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = st
}

func (g *Game) Status() gameserver.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Game) SetUsers(users ...gameserver.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users = append([]gameserver.User(nil), users...)
}

func (g *Game) Users() []gameserver.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gameserver.User(nil), g.users...)
}

func (g *Game) Online() []gameserver.User {
	var out []gameserver.User
	for _, u := range g.Users() {
		if u.Online {
			out = append(out, u)
		}
	}
	return out
}

func (g *Game) User(idOrName string) (gameserver.User, bool) {
	for _, u := range g.Users() {
		if u.ID == idOrName || strings.EqualFold(u.Name, idOrName) {
			return u, true
		}
	}
	return gameserver.User{}, false
}

// Recorder counts module activity.
type Recorder struct {
	mu       sync.Mutex
	displays map[string]int
	feeds    map[string]int
}

func NewRecorder() *Recorder {
	return &Recorder{displays: make(map[string]int), feeds: make(map[string]int)}
}

func (r *Recorder) DisplaySynced(worker, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displays[worker+"/"+outcome]++
}

func (r *Recorder) FeedPosted(feed string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[feed]++
}

func (r *Recorder) Displays(worker, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displays[worker+"/"+outcome]
}

func (r *Recorder) Feeds(feed string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feeds[feed]
}
