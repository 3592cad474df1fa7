// Package worker runs lifecycle-managed units of logic that react to bus
// events.
//
// Each running worker owns a goroutine draining its own FIFO mailbox, so a
// worker sees events strictly in publish order while different workers
// proceed independently. Faults inside a worker are recovered and logged
// without affecting the bus or sibling workers.
package worker

import (
	"context"
	"errors"

	"github.com/tinyland-inc/gamelink/pkg/bus"
)

var (
	ErrDuplicateWorker = errors.New("worker already registered")
	ErrUnknownWorker   = errors.New("worker not registered")
)

// State is a worker's position in its lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateSetup
	StateRunning
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSetup:
		return "setup"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Worker interface {
	// Name identifies the worker in the registry, logs and metrics.
	Name() string
	// Triggers is the mask of event kinds delivered to Update.
	Triggers() bus.EventKind
	// ShouldRun gates dispatch. It is re-evaluated on connect and whenever a
	// config-changed or connection-established event is published, and must
	// be cheap.
	ShouldRun() bool
	Setup(ctx context.Context) error
	Update(ctx context.Context, e bus.Event) error
	// Teardown releases local resources. It must not delete remote messages.
	Teardown(ctx context.Context)
}

// Describer is implemented by workers that report extra status text.
type Describer interface {
	Describe() string
}

// Runner is implemented by workers that hold background resources, such as
// flush tickers, only while Running. Both hooks run on the worker's own
// goroutine, ordered with its updates.
type Runner interface {
	// Started is called before the first update after entering Running. ctx
	// is cancelled when the worker leaves Running.
	Started(ctx context.Context)
	// Stopped is called after the last update before leaving Running.
	Stopped()
}

// Observer receives lifecycle notifications, typically for metrics.
type Observer interface {
	Delivered(worker string, kind bus.EventKind)
	Faulted(worker, phase string)
	Transitioned(worker string, from, to State)
}

// Base implements the no-op parts of Worker for embedding.
type Base struct{}

func (Base) Setup(context.Context) error { return nil }
func (Base) Teardown(context.Context) {}
