// Package display keeps one live remote message per (worker, channel) in step
// with the worker's latest rendered content.
//
// A tracked message is edited in place. When the platform reports it gone the
// bookkeeping is cleared and the following Sync posts a fresh copy. Messages
// are never deleted from here.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/remote"
	"github.com/tinyland-inc/gamelink/pkg/render"
)

// Outcome reports what a Sync call did.
type Outcome int

const (
	Unchanged Outcome = iota
	Sent
	Edited
	Cleared
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Sent:
		return "sent"
	case Edited:
		return "edited"
	case Cleared:
		return "cleared"
	default:
		return "failed"
	}
}

type key struct {
	worker    string
	channelID string
}

type slot struct {
	mu   sync.Mutex
	last *render.Content
}

type Synchronizer struct {
	platform remote.Platform
	store    Store

	mu     sync.Mutex
	slots  map[key]*slot
	warned map[key]bool
}

func NewSynchronizer(platform remote.Platform, store Store) *Synchronizer {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Synchronizer{
		platform: platform,
		store:    store,
		slots:    make(map[key]*slot),
		warned:   make(map[key]bool),
	}
}

func (s *Synchronizer) slot(k key) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[k]
	if !ok {
		sl = &slot{}
		s.slots[k] = sl
	}
	return sl
}

// Sync brings the worker's live message in channelID up to date with content.
//
// Without a tracked message every page is sent and only the last page is
// tracked. With one, it is edited with the first page. Calls for the same
// (worker, channel) never overlap. Errors are logged here; permission errors
// only once per pair until a call succeeds again.
func (s *Synchronizer) Sync(ctx context.Context, worker, channelID string, content render.Content) (Outcome, error) {
	k := key{worker, channelID}
	sl := s.slot(k)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	ref, tracked, err := s.store.Get(ctx, worker, channelID)
	if err != nil {
		logger.WarnCF("display", "Failed to load tracked message", map[string]any{
			"worker":  worker,
			"channel": channelID,
			"error":   err.Error(),
		})
		return Failed, fmt.Errorf("load tracked message: %w", err)
	}

	if tracked && sl.last != nil && sl.last.Equal(content) {
		return Unchanged, nil
	}

	pages := render.Paginate(content)
	if !tracked {
		return s.send(ctx, k, sl, pages, content)
	}

	err = s.platform.Edit(ctx, ref, "", &pages[0])
	switch {
	case err == nil:
		s.succeeded(k)
		sl.last = cloneContent(content)
		return Edited, nil
	case errors.Is(err, remote.ErrNotFound):
		logger.InfoCF("display", "Tracked message is gone, resending on next update", map[string]any{
			"worker":  worker,
			"channel": channelID,
			"message": ref.MessageID,
		})
		sl.last = nil
		if derr := s.store.Delete(ctx, worker, channelID); derr != nil {
			return Failed, fmt.Errorf("clear tracked message: %w", derr)
		}
		return Cleared, nil
	default:
		s.failed(k, "edit", err)
		return Failed, fmt.Errorf("edit %s: %w", ref, err)
	}
}

func (s *Synchronizer) send(ctx context.Context, k key, sl *slot, pages []render.Content, content render.Content) (Outcome, error) {
	var last remote.MessageRef
	for i := range pages {
		ref, err := s.platform.Send(ctx, k.channelID, "", &pages[i], remote.SendOptions{})
		if err != nil {
			s.failed(k, "send", err)
			err = fmt.Errorf("send page %d/%d: %w", i+1, len(pages), err)
			if i == 0 {
				return Failed, err
			}
			// Track what did get posted so the next Sync edits it instead of
			// posting the earlier pages again.
			if perr := s.store.Put(ctx, k.worker, k.channelID, last); perr != nil {
				return Failed, errors.Join(err, fmt.Errorf("track message: %w", perr))
			}
			logger.InfoCF("display", "Display partially posted", map[string]any{
				"worker":  k.worker,
				"channel": k.channelID,
				"pages":   len(pages),
				"posted":  i,
				"message": last.MessageID,
			})
			return Failed, err
		}
		last = ref
	}
	if err := s.store.Put(ctx, k.worker, k.channelID, last); err != nil {
		return Failed, fmt.Errorf("track message: %w", err)
	}
	s.succeeded(k)
	sl.last = cloneContent(content)
	logger.DebugCF("display", "Display posted", map[string]any{
		"worker":  k.worker,
		"channel": k.channelID,
		"pages":   len(pages),
		"message": last.MessageID,
	})
	return Sent, nil
}

func (s *Synchronizer) failed(k key, op string, err error) {
	fields := map[string]any{
		"worker":  k.worker,
		"channel": k.channelID,
		"op":      op,
		"error":   err.Error(),
	}
	if errors.Is(err, remote.ErrPermission) {
		s.mu.Lock()
		seen := s.warned[k]
		s.warned[k] = true
		s.mu.Unlock()
		if !seen {
			logger.WarnCF("display", "Missing permission to update display", fields)
		}
		return
	}
	logger.DebugCF("display", "Display update failed", fields)
}

func (s *Synchronizer) succeeded(k key) {
	s.mu.Lock()
	delete(s.warned, k)
	s.mu.Unlock()
}

// Invalidate drops the cached content for a worker so the next Sync edits
// even if nothing changed.
func (s *Synchronizer) Invalidate(worker string) {
	s.mu.Lock()
	slots := make([]*slot, 0)
	for k, sl := range s.slots {
		if k.worker == worker {
			slots = append(slots, sl)
		}
	}
	s.mu.Unlock()

	for _, sl := range slots {
		sl.mu.Lock()
		sl.last = nil
		sl.mu.Unlock()
	}
}

// Release drops in-memory state for a worker. Persisted message refs are kept
// so a later run resumes editing the same messages.
func (s *Synchronizer) Release(worker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.slots {
		if k.worker == worker {
			delete(s.slots, k)
			delete(s.warned, k)
		}
	}
}

// Forget releases a worker and deletes its persisted refs. The remote
// messages stay where they are.
func (s *Synchronizer) Forget(ctx context.Context, worker string) error {
	s.Release(worker)
	return s.store.DeleteWorker(ctx, worker)
}

// Tracked returns the message currently tracked for (worker, channel).
func (s *Synchronizer) Tracked(ctx context.Context, worker, channelID string) (remote.MessageRef, bool) {
	ref, ok, err := s.store.Get(ctx, worker, channelID)
	if err != nil {
		return remote.MessageRef{}, false
	}
	return ref, ok
}

func cloneContent(c render.Content) *render.Content {
	cp := c
	cp.Fields = append([]render.Field(nil), c.Fields...)
	return &cp
}
