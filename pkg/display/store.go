package display

import (
	"context"
	"sync"

	"github.com/tinyland-inc/gamelink/pkg/remote"
)

// Store persists the live message tracked for each (worker, channel) pair.
type Store interface {
	Get(ctx context.Context, worker, channelID string) (remote.MessageRef, bool, error)
	Put(ctx context.Context, worker, channelID string, ref remote.MessageRef) error
	Delete(ctx context.Context, worker, channelID string) error
	DeleteWorker(ctx context.Context, worker string) error
}

type memoryKey struct {
	worker    string
	channelID string
}

// MemoryStore keeps tracked messages for the life of the process.
type MemoryStore struct {
	mu   sync.Mutex
	refs map[memoryKey]remote.MessageRef
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{refs: make(map[memoryKey]remote.MessageRef)}
}

func (s *MemoryStore) Get(_ context.Context, worker, channelID string) (remote.MessageRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[memoryKey{worker, channelID}]
	return ref, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, worker, channelID string, ref remote.MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[memoryKey{worker, channelID}] = ref
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, worker, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, memoryKey{worker, channelID})
	return nil
}

func (s *MemoryStore) DeleteWorker(_ context.Context, worker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.refs {
		if k.worker == worker {
			delete(s.refs, k)
		}
	}
	return nil
}
