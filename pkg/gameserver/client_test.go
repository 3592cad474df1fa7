package gameserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/config"
)

type fakeServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received []Envelope
	auth     string
	ready    chan struct{}
	once     sync.Once
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	s := &fakeServer{ready: make(chan struct{})}
	s.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.auth = r.Header.Get("Authorization")
		s.mu.Unlock()
		s.once.Do(func() { close(s.ready) })
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, env)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *fakeServer) push(t *testing.T, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteJSON(Envelope{Type: typ, Data: raw}))
}

func (s *fakeServer) frames() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.received...)
}

type recordingBus struct {
	mu     sync.Mutex
	events []bus.Event
}

func (b *recordingBus) Publish(kind bus.EventKind, payload ...any) (bus.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := bus.Event{Kind: kind, Payload: payload}
	b.events = append(b.events, e)
	return e, nil
}

func (b *recordingBus) snapshot() []bus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bus.Event(nil), b.events...)
}

func startClient(t *testing.T, s *fakeServer, pub Publisher) (*Client, chan bool) {
	t.Helper()
	states := make(chan bool, 4)
	c := NewClient(config.GameConfig{
		WSURL:      s.wsURL(),
		Token:      "secret",
		ServerName: "Test Server",
		Reconnect:  config.Duration(50 * time.Millisecond),
	}, pub, WithStateHook(func(up bool) {
		select {
		case states <- up:
		default:
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-s.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}
	select {
	case up := <-states:
		require.True(t, up)
	case <-time.After(2 * time.Second):
		t.Fatal("no connect notification")
	}
	return c, states
}

func TestClient_HelloAndAuth(t *testing.T) {
	s := newFakeServer(t)
	startClient(t, s, &recordingBus{})

	require.Eventually(t, func() bool { return len(s.frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, TypeHello, s.frames()[0].Type)
	s.mu.Lock()
	assert.Equal(t, "Bearer secret", s.auth)
	s.mu.Unlock()
}

func TestClient_PublishesEvents(t *testing.T) {
	s := newFakeServer(t)
	b := &recordingBus{}
	startClient(t, s, b)

	s.push(t, "chat", ChatMessage{Channel: "General", Author: "alice", Text: "hi"})
	s.push(t, "trade", Trade{Buyer: "alice", Seller: "bob", Item: "Wood", Quantity: 5})
	s.push(t, "mystery", map[string]any{})

	require.Eventually(t, func() bool { return len(b.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	events := b.snapshot()

	assert.Equal(t, bus.MessageSent, events[0].Kind)
	msg, ok := bus.Arg[ChatMessage](events[0], 0)
	require.True(t, ok)
	assert.Equal(t, "alice", msg.Author)

	assert.Equal(t, bus.TradeCompleted, events[1].Kind)
	tr, ok := bus.Arg[Trade](events[1], 0)
	require.True(t, ok)
	assert.Equal(t, 5, tr.Quantity)
}

func TestClient_DirectoryAndStatus(t *testing.T) {
	s := newFakeServer(t)
	c, _ := startClient(t, s, &recordingBus{})

	s.push(t, TypeUsers, []User{{ID: "1", Name: "bob"}, {ID: "2", Name: "Alice", Admin: true}})
	s.push(t, "user_login", Presence{User: User{ID: "1", Name: "bob"}})
	s.push(t, TypeStatus, Status{OnlinePlayers: 1, MaxPlayers: 10})

	require.Eventually(t, func() bool { return c.Status().MaxPlayers == 10 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Test Server", c.Status().Name)

	users := c.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)

	online := c.Online()
	require.Len(t, online, 1)
	assert.Equal(t, "bob", online[0].Name)

	u, ok := c.User("alice")
	require.True(t, ok)
	assert.True(t, u.Admin)
}

func TestClient_SendChat(t *testing.T) {
	s := newFakeServer(t)
	c, _ := startClient(t, s, &recordingBus{})

	require.NoError(t, c.SendChat(context.Background(), "General", "Discord", "hello game"))
	require.Eventually(t, func() bool { return len(s.frames()) == 2 }, time.Second, 5*time.Millisecond)

	f := s.frames()[1]
	assert.Equal(t, TypeSay, f.Type)
	var got say
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, say{Channel: "General", Author: "Discord", Text: "hello game"}, got)
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient(config.GameConfig{WSURL: "ws://127.0.0.1:1"}, &recordingBus{})
	err := c.SendChat(context.Background(), "General", "x", "y")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.Connected())
}

func TestClient_ReportsDisconnect(t *testing.T) {
	s := newFakeServer(t)
	_, states := startClient(t, s, &recordingBus{})

	s.mu.Lock()
	_ = s.conn.Close()
	s.mu.Unlock()

	select {
	case up := <-states:
		assert.False(t, up)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect notification")
	}
}
