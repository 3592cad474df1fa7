package gameserver

import (
	"encoding/json"
	"time"

	"github.com/tinyland-inc/gamelink/pkg/bus"
)

// Envelope is the frame exchanged with the game server plugin in both
// directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message types sent by the bridge.
const (
	TypeHello = "hello"
	TypeSay   = "say"
)

// Message types received from the server that are not bus events.
const (
	TypeStatus  = "status"
	TypeUsers   = "users"
	TypeWelcome = "welcome"
)

type ChatMessage struct {
	ID       string    `json:"id"`
	Channel  string    `json:"channel"`
	Author   string    `json:"author"`
	AuthorID string    `json:"author_id"`
	Admin    bool      `json:"admin"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Admin  bool   `json:"admin"`
	Online bool   `json:"online"`
}

type Trade struct {
	Buyer    string  `json:"buyer"`
	Seller   string  `json:"seller"`
	Item     string  `json:"item"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Store    string  `json:"store"`
}

type Election struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Proposer string `json:"proposer"`
	Winner   string `json:"winner,omitempty"`
	Passed   bool   `json:"passed"`
	Votes    int    `json:"votes"`
}

type WorkParty struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Creator  string `json:"creator"`
	Worker   string `json:"worker,omitempty"`
	Progress int    `json:"progress"`
}

type Currency struct {
	Name    string `json:"name"`
	Creator string `json:"creator"`
}

type Presence struct {
	User User `json:"user"`
}

type WorldReset struct {
	Seed int64 `json:"seed"`
}

// Status is the server snapshot pushed periodically by the plugin.
type Status struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Version       string    `json:"version"`
	OnlinePlayers int       `json:"online_players"`
	MaxPlayers    int       `json:"max_players"`
	TotalPlayers  int       `json:"total_players"`
	Day           int       `json:"day"`
	Laws          int       `json:"laws"`
	Elections     int       `json:"active_elections"`
	Address       string    `json:"address"`
	StartedAt     time.Time `json:"started_at"`
}

type say struct {
	Channel string `json:"channel"`
	Author  string `json:"author"`
	Text    string `json:"text"`
}

type hello struct {
	Token string `json:"token,omitempty"`
}

// eventTypes maps incoming frame types to bus kinds and their payload decoder.
var eventTypes = map[string]struct {
	kind   bus.EventKind
	decode func(json.RawMessage) (any, error)
}{
	"chat":                 {bus.MessageSent, decodeAs[ChatMessage]},
	"chat_edited":          {bus.MessageEdited, decodeAs[ChatMessage]},
	"chat_deleted":         {bus.MessageDeleted, decodeAs[ChatMessage]},
	"user_joined":          {bus.UserJoined, decodeAs[Presence]},
	"user_login":           {bus.UserLogin, decodeAs[Presence]},
	"user_logout":          {bus.UserLogout, decodeAs[Presence]},
	"election_started":     {bus.ElectionStarted, decodeAs[Election]},
	"election_finished":    {bus.ElectionFinished, decodeAs[Election]},
	"trade":                {bus.TradeCompleted, decodeAs[Trade]},
	"work_party_posted":    {bus.WorkPartyPosted, decodeAs[WorkParty]},
	"work_party_completed": {bus.WorkPartyCompleted, decodeAs[WorkParty]},
	"work_party_joined":    {bus.WorkPartyJoined, decodeAs[WorkParty]},
	"work_party_left":      {bus.WorkPartyLeft, decodeAs[WorkParty]},
	"work_party_worked":    {bus.WorkPartyWorked, decodeAs[WorkParty]},
	"currency_created":     {bus.CurrencyCreated, decodeAs[Currency]},
	"world_reset":          {bus.WorldReset, decodeAs[WorldReset]},
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
