package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/logger"
)

// reevaluateKinds are the events that make the manager re-check ShouldRun for
// every set-up worker before dispatching.
const reevaluateKinds = bus.ConfigChanged | bus.ConnectionEstablished

type entry struct {
	w Worker

	mu        sync.Mutex // serializes transitions
	state     atomic.Int32
	setupDone bool
	mbox      *mailbox
	cancel    context.CancelFunc
	done      chan struct{}

	delivered atomic.Uint64
	faults    atomic.Uint64
}

func (en *entry) State() State {
	return State(en.state.Load())
}

// Status is a point-in-time view of one worker.
type Status struct {
	Name        string        `json:"name"`
	State       State         `json:"state"`
	Triggers    bus.EventKind `json:"-"`
	Queued      int           `json:"queued"`
	Delivered   uint64        `json:"delivered"`
	Faults      uint64        `json:"faults"`
	Description string        `json:"description,omitempty"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithObserver registers an observer for lifecycle notifications.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// Manager owns every worker and their state machines. It implements
// bus.Dispatcher.
type Manager struct {
	mu        sync.RWMutex
	order     []*entry
	byName    map[string]*entry
	baseCtx   context.Context
	connected bool
	observer  Observer
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		byName:  make(map[string]*entry),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a worker in the Uninitialized state. Dispatch order follows
// registration order.
func (m *Manager) Register(w Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := w.Name()
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateWorker, name)
	}
	en := &entry{w: w}
	m.byName[name] = en
	m.order = append(m.order, en)
	return nil
}

// Get returns a registered worker by name.
func (m *Manager) Get(name string) (Worker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	en, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return en.w, true
}

// State returns the lifecycle state of a registered worker.
func (m *Manager) State(name string) (State, error) {
	m.mu.RLock()
	en, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWorker, name)
	}
	return en.State(), nil
}

func (m *Manager) entries() []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.order
}

// Connect sets up every worker that has not completed setup yet, in
// registration order, then starts the ones whose ShouldRun reports true. A
// failing setup leaves that worker Stopped and moves on to the next.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = context.WithoutCancel(ctx)
	m.connected = true
	m.mu.Unlock()

	for _, en := range m.entries() {
		m.setup(ctx, en)
	}
	m.Reevaluate()
}

func (m *Manager) setup(ctx context.Context, en *entry) {
	en.mu.Lock()
	defer en.mu.Unlock()

	if en.setupDone || en.State() == StateDestroyed {
		return
	}

	m.transition(en, StateSetup)
	if err := m.safeSetup(ctx, en.w); err != nil {
		logger.ErrorCF("worker", "Worker setup failed", map[string]any{
			"worker": en.w.Name(),
			"error":  err.Error(),
		})
		en.faults.Add(1)
		if m.observer != nil {
			m.observer.Faulted(en.w.Name(), "setup")
		}
		m.transition(en, StateStopped)
		return
	}
	en.setupDone = true
	m.transition(en, StateStopped)
}

func (m *Manager) safeSetup(ctx context.Context, w Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during setup: %v", r)
		}
	}()
	return w.Setup(ctx)
}

// Reevaluate starts stopped workers whose ShouldRun turned true and stops
// running workers whose ShouldRun turned false. Between Disconnect and the
// next Connect it only ever stops workers.
func (m *Manager) Reevaluate() {
	for _, en := range m.entries() {
		en.mu.Lock()
		if en.setupDone {
			switch run := m.safeShouldRun(en.w); {
			case run && m.isConnected() && en.State() == StateStopped:
				m.start(en)
			case !run && en.State() == StateRunning:
				m.stop(en)
			}
		}
		en.mu.Unlock()
	}
}

// isConnected is read under en.mu: Disconnect clears the flag before it
// takes any entry lock, so a start seen here is always undone by it.
func (m *Manager) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Manager) safeShouldRun(w Worker) (run bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("worker", "ShouldRun panicked", map[string]any{
				"worker": w.Name(),
				"panic":  fmt.Sprint(r),
			})
			run = false
		}
	}()
	return w.ShouldRun()
}

// start launches the worker's mailbox goroutine. The new goroutine waits for
// the previous one to exit before its first Update, so a stop/start cycle
// never runs two updates of one worker at once. Caller holds en.mu.
func (m *Manager) start(en *entry) {
	m.mu.RLock()
	base := m.baseCtx
	m.mu.RUnlock()

	ctx, cancel := context.WithCancel(base)
	prev := en.done
	en.mbox = newMailbox()
	en.cancel = cancel
	en.done = make(chan struct{})
	m.transition(en, StateRunning)

	go m.run(ctx, en, en.mbox, prev, en.done)
}

// stop cancels the mailbox goroutine without waiting for it. Queued events
// are abandoned. The returned channel closes once the goroutine has exited
// and the worker's Stopped hook has returned. Caller holds en.mu.
func (m *Manager) stop(en *entry) chan struct{} {
	if en.cancel != nil {
		en.cancel()
		en.cancel = nil
	}
	m.transition(en, StateStopped)
	return en.done
}

func (m *Manager) run(ctx context.Context, en *entry, mbox *mailbox, prev, done chan struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}
	if r, ok := en.w.(Runner); ok {
		m.safeHook(en.w.Name(), "started", func() { r.Started(ctx) })
		defer m.safeHook(en.w.Name(), "stopped", r.Stopped)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-mbox.notify:
			for _, e := range mbox.drain() {
				if ctx.Err() != nil {
					return
				}
				m.deliver(ctx, en, e)
			}
		}
	}
}

func (m *Manager) safeHook(name, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("worker", "Worker hook panicked", map[string]any{
				"worker": name,
				"hook":   hook,
				"panic":  fmt.Sprint(r),
			})
			if m.observer != nil {
				m.observer.Faulted(name, hook)
			}
		}
	}()
	fn()
}

func (m *Manager) deliver(ctx context.Context, en *entry, e bus.Event) {
	name := en.w.Name()
	defer func() {
		if r := recover(); r != nil {
			en.faults.Add(1)
			logger.ErrorCF("worker", "Worker panicked during update", map[string]any{
				"worker":   name,
				"event":    e.Kind.String(),
				"event_id": e.ID,
				"panic":    fmt.Sprint(r),
				"stack":    string(debug.Stack()),
			})
			if m.observer != nil {
				m.observer.Faulted(name, "update")
			}
		}
	}()

	en.delivered.Add(1)
	if m.observer != nil {
		m.observer.Delivered(name, e.Kind)
	}
	if err := en.w.Update(ctx, e); err != nil {
		en.faults.Add(1)
		logger.WarnCF("worker", "Worker update failed", map[string]any{
			"worker":   name,
			"event":    e.Kind.String(),
			"event_id": e.ID,
			"error":    err.Error(),
		})
		if m.observer != nil {
			m.observer.Faulted(name, "update")
		}
	}
}

// Dispatch queues e for every running worker whose trigger mask matches. It
// never blocks on worker execution.
func (m *Manager) Dispatch(e bus.Event) {
	if e.Kind.Has(reevaluateKinds) {
		m.Reevaluate()
	}
	for _, en := range m.entries() {
		if !e.Kind.Has(en.w.Triggers()) {
			continue
		}
		en.mu.Lock()
		if en.State() == StateRunning {
			en.mbox.push(e)
		}
		en.mu.Unlock()
	}
}

// Disconnect stops every running worker and waits, bounded by ctx, for their
// in-flight updates to return. Workers stay stopped until the next Connect.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()

	var waits []chan struct{}
	for _, en := range m.entries() {
		en.mu.Lock()
		if en.State() == StateRunning {
			waits = append(waits, m.stop(en))
		}
		en.mu.Unlock()
	}
	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			logger.WarnC("worker", "Timed out waiting for workers to stop")
			return
		}
	}
}

// Shutdown stops and tears down every worker, leaving them Destroyed.
// Destroyed workers are never started again.
func (m *Manager) Shutdown(ctx context.Context) {
	m.Disconnect(ctx)
	for _, en := range m.entries() {
		en.mu.Lock()
		if en.State() != StateDestroyed {
			m.safeTeardown(ctx, en.w)
			en.setupDone = false
			m.transition(en, StateDestroyed)
		}
		en.mu.Unlock()
	}
}

func (m *Manager) safeTeardown(ctx context.Context, w Worker) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("worker", "Worker panicked during teardown", map[string]any{
				"worker": w.Name(),
				"panic":  fmt.Sprint(r),
			})
		}
	}()
	w.Teardown(ctx)
}

func (m *Manager) transition(en *entry, to State) {
	from := State(en.state.Swap(int32(to)))
	if from == to {
		return
	}
	logger.DebugCF("worker", "Worker state changed", map[string]any{
		"worker": en.w.Name(),
		"from":   from.String(),
		"to":     to.String(),
	})
	if m.observer != nil {
		m.observer.Transitioned(en.w.Name(), from, to)
	}
}

// States returns a snapshot of every worker in registration order.
func (m *Manager) States() []Status {
	entries := m.entries()
	out := make([]Status, 0, len(entries))
	for _, en := range entries {
		st := Status{
			Name:      en.w.Name(),
			State:     en.State(),
			Triggers:  en.w.Triggers(),
			Delivered: en.delivered.Load(),
			Faults:    en.faults.Load(),
		}
		en.mu.Lock()
		if en.mbox != nil && st.State == StateRunning {
			st.Queued = en.mbox.len()
		}
		en.mu.Unlock()
		if d, ok := en.w.(Describer); ok {
			st.Description = d.Describe()
		}
		out = append(out, st)
	}
	return out
}
