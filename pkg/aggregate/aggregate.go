// Package aggregate batches bursts of related events and flushes them on a
// fixed interval.
package aggregate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/gamelink/pkg/logger"
)

const DefaultInterval = time.Second

// Bucket is the set of events buffered under one correlation key.
type Bucket[E any] struct {
	Key       string
	Events    []E
	CreatedAt time.Time
}

// KeyFunc derives the correlation key for an event.
type KeyFunc[E any] func(E) string

// Flusher renders and delivers one bucket. It runs on the flush goroutine and
// must not call back into the aggregator that owns it.
type Flusher[E any] func(ctx context.Context, b Bucket[E])

type Aggregator[E any] struct {
	name  string
	key   KeyFunc[E]
	flush Flusher[E]
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*Bucket[E]
	order   []string

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New[E any](name string, key KeyFunc[E], flush Flusher[E]) *Aggregator[E] {
	return &Aggregator[E]{
		name:    name,
		key:     key,
		flush:   flush,
		now:     time.Now,
		buckets: make(map[string]*Bucket[E]),
	}
}

// OnEvent appends e to its bucket, creating the bucket on first use. It never
// flushes.
func (a *Aggregator[E]) OnEvent(e E) {
	k := a.key(e)
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[k]
	if !ok {
		b = &Bucket[E]{Key: k, CreatedAt: a.now()}
		a.buckets[k] = b
		a.order = append(a.order, k)
	}
	b.Events = append(b.Events, e)
}

// Pending returns the number of open buckets.
func (a *Aggregator[E]) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}

// FlushAll hands every non-empty bucket to the flusher in creation order and
// discards them. Events arriving meanwhile land in fresh buckets. It returns
// the number of buckets flushed.
func (a *Aggregator[E]) FlushAll(ctx context.Context) int {
	a.mu.Lock()
	if len(a.buckets) == 0 {
		a.mu.Unlock()
		return 0
	}
	buckets, order := a.buckets, a.order
	a.buckets = make(map[string]*Bucket[E])
	a.order = nil
	a.mu.Unlock()

	flushed := 0
	for _, k := range order {
		b := buckets[k]
		if len(b.Events) == 0 {
			continue
		}
		a.safeFlush(ctx, *b)
		flushed++
	}
	return flushed
}

func (a *Aggregator[E]) safeFlush(ctx context.Context, b Bucket[E]) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("aggregate", "Flush panicked", map[string]any{
				"aggregator": a.name,
				"key":        b.Key,
				"panic":      r,
			})
		}
	}()
	a.flush(ctx, b)
}

// Start runs FlushAll every interval until Stop or ctx is done. Calling Start
// on a running aggregator is a no-op.
func (a *Aggregator[E]) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				a.FlushAll(ctx)
			}
		}
	}(a.done)
}

// Stop halts the ticker and waits for an in-progress flush to return.
// Buffered events are kept; a later Start or FlushAll delivers them.
func (a *Aggregator[E]) Stop() {
	a.runMu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// PairKey is the unordered correlation key for two participants.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "\x00")
}

// SplitPairKey reverses PairKey.
func SplitPairKey(key string) (string, string) {
	a, b, _ := strings.Cut(key, "\x00")
	return a, b
}
