// Package gameserver connects to the game server's bridge plugin over a
// websocket and turns its frames into bus events.
package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/config"
	"github.com/tinyland-inc/gamelink/pkg/logger"
)

var ErrNotConnected = errors.New("game server not connected")

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 15 * time.Second
	defaultReconnect = 10 * time.Second
)

// Publisher is the part of the event bus the client needs.
type Publisher interface {
	Publish(kind bus.EventKind, payload ...any) (bus.Event, error)
}

type Option func(*Client)

// WithStateHook is called with true after every successful handshake and
// with false when the connection drops.
func WithStateHook(fn func(connected bool)) Option {
	return func(c *Client) { c.onState = fn }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

type Client struct {
	url       string
	token     string
	reconnect time.Duration
	pub       Publisher
	dialer    *websocket.Dialer
	onState   func(bool)

	writeMu sync.Mutex
	mu      sync.RWMutex
	conn    *websocket.Conn
	users   map[string]User
	status  Status
}

func NewClient(cfg config.GameConfig, pub Publisher, opts ...Option) *Client {
	c := &Client{
		url:       cfg.WSURL,
		token:     cfg.Token,
		reconnect: cfg.Reconnect.Std(),
		pub:       pub,
		users:     make(map[string]User),
		status:    Status{Name: cfg.ServerName},
	}
	if c.reconnect <= 0 {
		c.reconnect = defaultReconnect
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = handshakeTimeout
		c.dialer = &d
	}
	return c
}

// Run keeps a session open until ctx is cancelled, reconnecting after every
// failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.WarnCF("gameserver", "Game connection ended", map[string]any{
			"url":   c.url,
			"error": errString(err),
			"retry": c.reconnect.String(),
		})
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s (status %d): %w", c.url, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.write(Envelope{Type: TypeHello, Data: mustJSON(hello{Token: c.token})}); err != nil {
		c.drop(conn)
		return fmt.Errorf("hello: %w", err)
	}

	logger.InfoCF("gameserver", "Connected to game server", map[string]any{"url": c.url})
	if c.onState != nil {
		c.onState(true)
	}

	stop := context.AfterFunc(ctx, func() {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	})
	defer stop()

	err = c.readLoop(conn)
	c.drop(conn)
	if c.onState != nil {
		c.onState(false)
	}
	return err
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		c.handle(env)
	}
}

// handle applies one frame. Malformed frames are logged and skipped.
func (c *Client) handle(env Envelope) {
	switch env.Type {
	case TypeWelcome:
		return
	case TypeStatus:
		var st Status
		if err := json.Unmarshal(env.Data, &st); err != nil {
			c.malformed(env, err)
			return
		}
		c.mu.Lock()
		if st.Name == "" {
			st.Name = c.status.Name
		}
		c.status = st
		c.mu.Unlock()
		return
	case TypeUsers:
		var users []User
		if err := json.Unmarshal(env.Data, &users); err != nil {
			c.malformed(env, err)
			return
		}
		c.mu.Lock()
		c.users = make(map[string]User, len(users))
		for _, u := range users {
			c.users[u.ID] = u
		}
		c.mu.Unlock()
		return
	}

	et, ok := eventTypes[env.Type]
	if !ok {
		logger.DebugCF("gameserver", "Ignoring unknown frame", map[string]any{"type": env.Type})
		return
	}
	payload, err := et.decode(env.Data)
	if err != nil {
		c.malformed(env, err)
		return
	}
	c.track(et.kind, payload)

	if _, err := c.pub.Publish(et.kind, payload); err != nil {
		logger.DebugCF("gameserver", "Publish rejected", map[string]any{
			"type":  env.Type,
			"error": err.Error(),
		})
	}
}

// track keeps the user directory current from presence events.
func (c *Client) track(kind bus.EventKind, payload any) {
	p, ok := payload.(Presence)
	if !ok || p.User.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case bus.UserJoined, bus.UserLogin:
		p.User.Online = true
		c.users[p.User.ID] = p.User
	case bus.UserLogout:
		p.User.Online = false
		c.users[p.User.ID] = p.User
	}
}

func (c *Client) malformed(env Envelope, err error) {
	logger.WarnCF("gameserver", "Malformed frame", map[string]any{
		"type":  env.Type,
		"error": err.Error(),
	})
}

func (c *Client) write(env Envelope) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(env)
}

// SendChat posts text into a game chat channel as author.
func (c *Client) SendChat(ctx context.Context, channel, author, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(say{Channel: channel, Author: author, Text: text})
	if err != nil {
		return err
	}
	if err := c.write(Envelope{Type: TypeSay, Data: data}); err != nil {
		return fmt.Errorf("send chat to %s: %w", channel, err)
	}
	return nil
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Users returns the known users sorted by name.
func (c *Client) Users() []User {
	c.mu.RLock()
	out := make([]User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// User looks a user up by id, then by case-insensitive name.
func (c *Client) User(idOrName string) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if u, ok := c.users[idOrName]; ok {
		return u, true
	}
	for _, u := range c.users {
		if strings.EqualFold(u.Name, idOrName) {
			return u, true
		}
	}
	return User{}, false
}

// Online returns the online users sorted by name.
func (c *Client) Online() []User {
	var out []User
	for _, u := range c.Users() {
		if u.Online {
			out = append(out, u)
		}
	}
	return out
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
