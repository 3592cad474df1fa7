package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBusClosed is returned when publishing to a closed EventBus.
	ErrBusClosed = errors.New("event bus closed")
	// ErrNoKind is returned when publishing an event without a kind.
	ErrNoKind = errors.New("event kind is required")
)

// Dispatcher receives every published event. Dispatch must not block; the
// worker manager queues events per worker instead of handling them inline.
type Dispatcher interface {
	Dispatch(e Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(e Event)

func (f DispatcherFunc) Dispatch(e Event) { f(e) }

type EventBus struct {
	mu          sync.RWMutex
	dispatchers []Dispatcher
	closed      atomic.Bool
	published   atomic.Uint64
	now         func() time.Time
}

func NewEventBus() *EventBus {
	return &EventBus{now: time.Now}
}

// Register appends a dispatcher. Dispatchers are invoked in registration
// order for every publish.
func (b *EventBus) Register(d Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatchers = append(b.dispatchers, d)
}

// Publish stamps an event and hands it to every dispatcher. It returns the
// published event so producers can correlate logs.
func (b *EventBus) Publish(kind EventKind, payload ...any) (Event, error) {
	if b.closed.Load() {
		return Event{}, ErrBusClosed
	}
	if kind == 0 {
		return Event{}, ErrNoKind
	}

	e := Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: payload,
		Time:    b.now(),
	}

	b.mu.RLock()
	dispatchers := b.dispatchers
	b.mu.RUnlock()

	for _, d := range dispatchers {
		d.Dispatch(e)
	}
	b.published.Add(1)
	return e, nil
}

// Published returns the number of events accepted since creation.
func (b *EventBus) Published() uint64 {
	return b.published.Load()
}

func (b *EventBus) Close() {
	b.closed.Store(true)
}

func (b *EventBus) IsClosed() bool {
	return b.closed.Load()
}
