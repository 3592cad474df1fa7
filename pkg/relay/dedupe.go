package relay

import "sync"

// recentSet remembers the last n ids it has seen.
type recentSet struct {
	mu   sync.Mutex
	ring []string
	next int
	seen map[string]struct{}
}

func newRecentSet(n int) *recentSet {
	return &recentSet{ring: make([]string, n), seen: make(map[string]struct{}, n)}
}

// Add records id and reports whether it was new.
func (r *recentSet) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.seen, old)
	}
	r.ring[r.next] = id
	r.next = (r.next + 1) % len(r.ring)
	r.seen[id] = struct{}{}
	return true
}
