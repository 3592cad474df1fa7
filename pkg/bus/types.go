package bus

import (
	"strings"
	"time"
)

// EventKind is a bit flag; trigger masks are the OR of the kinds a worker
// handles.
type EventKind uint64

const (
	MessageSent EventKind = 1 << iota
	MessageEdited
	MessageDeleted
	ReactionAdded
	ReactionRemoved
	UserJoined
	UserLogin
	UserLogout
	ElectionStarted
	ElectionFinished
	TradeCompleted
	WorkPartyPosted
	WorkPartyCompleted
	WorkPartyJoined
	WorkPartyLeft
	WorkPartyWorked
	CurrencyCreated
	TimerTick
	ConnectionEstablished
	ConnectionLost
	ConfigChanged
	WorldReset
	ForceUpdate

	lastKind
)

// Any matches every defined kind.
const Any = lastKind - 1

var kindNames = []string{
	"message_sent",
	"message_edited",
	"message_deleted",
	"reaction_added",
	"reaction_removed",
	"user_joined",
	"user_login",
	"user_logout",
	"election_started",
	"election_finished",
	"trade_completed",
	"workparty_posted",
	"workparty_completed",
	"workparty_joined",
	"workparty_left",
	"workparty_worked",
	"currency_created",
	"timer_tick",
	"connection_established",
	"connection_lost",
	"config_changed",
	"world_reset",
	"force_update",
}

// Has reports whether k shares at least one bit with mask.
func (k EventKind) Has(mask EventKind) bool {
	return k&mask != 0
}

func (k EventKind) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	for i, name := range kindNames {
		if k&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if rest := k &^ Any; rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// KindByName resolves a single kind from its String() form.
func KindByName(name string) (EventKind, bool) {
	for i, n := range kindNames {
		if n == name {
			return EventKind(1) << i, true
		}
	}
	return 0, false
}

// Event is a single occurrence fanned out to workers. Payload values are
// opaque to the bus; producers and consumers agree on them per kind.
type Event struct {
	ID      string    `json:"id"`
	Kind    EventKind `json:"kind"`
	Payload []any     `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Arg returns payload value i as T.
func Arg[T any](e Event, i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(e.Payload) {
		return zero, false
	}
	v, ok := e.Payload[i].(T)
	return v, ok
}

// Find returns the first payload value of type T.
func Find[T any](e Event) (T, bool) {
	for _, p := range e.Payload {
		if v, ok := p.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
