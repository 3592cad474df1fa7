// Package remotetest provides an in-memory remote.Platform for tests.
package remotetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tinyland-inc/gamelink/pkg/remote"
	"github.com/tinyland-inc/gamelink/pkg/render"
)

// Call records one platform operation.
type Call struct {
	Op      string
	Ref     remote.MessageRef
	Text    string
	Content *render.Content
	Opts    remote.SendOptions
}

// Platform is a fake remote.Platform. Guilds, channels and users are
// registered up front; sent messages live in memory and can be removed with
// Vanish to simulate an external delete.
type Platform struct {
	mu       sync.Mutex
	self     string
	seq      int
	guilds   []remote.Guild
	channels []remote.Channel
	users    map[string]remote.User
	messages map[remote.MessageRef]Call
	calls    []Call
	activity string

	// FailWith, when set, is returned by every Send and Edit.
	FailWith error

	okSends  int
	sendFail error
}

func New(selfID string) *Platform {
	return &Platform{
		self:     selfID,
		users:    make(map[string]remote.User),
		messages: make(map[remote.MessageRef]Call),
	}
}

func (p *Platform) AddGuild(id, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guilds = append(p.guilds, remote.Guild{ID: id, Name: name})
}

func (p *Platform) AddChannel(guildID, id, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, remote.Channel{ID: id, GuildID: guildID, Name: name})
}

func (p *Platform) AddUser(u remote.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.ID] = u
}

func (p *Platform) Send(_ context.Context, channelID, text string, content *render.Content, opts remote.SendOptions) (remote.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return remote.MessageRef{}, p.FailWith
	}
	if p.sendFail != nil {
		if p.okSends == 0 {
			return remote.MessageRef{}, p.sendFail
		}
		p.okSends--
	}
	p.seq++
	ref := remote.MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", p.seq)}
	c := Call{Op: "send", Ref: ref, Text: text, Content: clone(content), Opts: opts}
	p.messages[ref] = c
	p.calls = append(p.calls, c)
	return ref, nil
}

func (p *Platform) Edit(_ context.Context, ref remote.MessageRef, text string, content *render.Content) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "edit", Ref: ref, Text: text, Content: clone(content)})
	if p.FailWith != nil {
		return p.FailWith
	}
	if _, ok := p.messages[ref]; !ok {
		return remote.Wrap(remote.ErrNotFound, fmt.Errorf("unknown message %s", ref))
	}
	p.messages[ref] = Call{Op: "send", Ref: ref, Text: text, Content: clone(content)}
	return nil
}

func (p *Platform) Delete(_ context.Context, ref remote.MessageRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "delete", Ref: ref})
	if _, ok := p.messages[ref]; !ok {
		return remote.Wrap(remote.ErrNotFound, fmt.Errorf("unknown message %s", ref))
	}
	delete(p.messages, ref)
	return nil
}

func (p *Platform) ResolveGuild(_ context.Context, nameOrID string) (remote.Guild, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, g := range p.guilds {
		if g.ID == nameOrID || strings.EqualFold(g.Name, nameOrID) {
			return g, true
		}
	}
	return remote.Guild{}, false
}

func (p *Platform) ResolveChannel(_ context.Context, guildID, nameOrID string) (remote.Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.channels {
		if c.GuildID != guildID {
			continue
		}
		if c.ID == nameOrID || strings.EqualFold(c.Name, strings.TrimPrefix(nameOrID, "#")) {
			return c, true
		}
	}
	return remote.Channel{}, false
}

func (p *Platform) ResolveUser(_ context.Context, _, userID string) (remote.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	return u, ok
}

func (p *Platform) SelfID() string { return p.self }

func (p *Platform) SetActivity(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activity = text
	p.calls = append(p.calls, Call{Op: "activity", Text: text})
	return nil
}

// Vanish removes a message as if a moderator deleted it.
func (p *Platform) Vanish(ref remote.MessageRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.messages, ref)
}

// Calls returns every recorded call, optionally filtered by op.
func (p *Platform) Calls(ops ...string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.calls {
		if len(ops) == 0 || contains(ops, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

// Sent returns the text of every successful send to channelID.
func (p *Platform) Sent(channelID string) []string {
	var out []string
	for _, c := range p.Calls("send") {
		if c.Ref.ChannelID == channelID {
			out = append(out, c.Text)
		}
	}
	return out
}

func (p *Platform) Activity() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activity
}

// FailSendsAfter lets the next n sends through and fails every later Send
// with err. A nil err clears it.
func (p *Platform) FailSendsAfter(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.okSends = n
	p.sendFail = err
}

func (p *Platform) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

func contains(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func clone(c *render.Content) *render.Content {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Fields = append([]render.Field(nil), c.Fields...)
	return &cp
}

var _ remote.Platform = (*Platform)(nil)
