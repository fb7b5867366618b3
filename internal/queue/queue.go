// Package queue holds bundles awaiting export, in order, with selection state.
package queue

import (
	"sync"

	"github.com/veostudio/studio-agent/internal/bundle"
)

// Queue is safe for concurrent use. Every selected id refers to a queued
// bundle.
type Queue struct {
	mu       sync.RWMutex
	items    []*bundle.Bundle
	selected map[string]struct{}
}

func New() *Queue {
	return &Queue{selected: make(map[string]struct{})}
}

// Enqueue appends b and selects it. A bundle already queued is left in place.
func (q *Queue) Enqueue(b *bundle.Bundle) bool {
	if b == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexLocked(b.ID) >= 0 {
		return false
	}
	q.items = append(q.items, b)
	q.selected[b.ID] = struct{}{}
	return true
}

// Remove drops the bundle with id and its selection. The removed bundle is
// returned so the caller can release what it owns; nil if absent.
func (q *Queue) Remove(id string) *bundle.Bundle {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return nil
	}
	b := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	delete(q.selected, id)
	return b
}

// ToggleSelection flips selection of a queued bundle. ok is false, and
// nothing changes, when id is not queued.
func (q *Queue) ToggleSelection(id string) (selected, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexLocked(id) < 0 {
		return false, false
	}
	if _, on := q.selected[id]; on {
		delete(q.selected, id)
		return false, true
	}
	q.selected[id] = struct{}{}
	return true, true
}

// IsSelected reports whether id is queued and selected.
func (q *Queue) IsSelected(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.selected[id]
	return ok
}

// SelectedBundles returns the selected bundles in queue order.
func (q *Queue) SelectedBundles() []*bundle.Bundle {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*bundle.Bundle, 0, len(q.selected))
	for _, b := range q.items {
		if _, ok := q.selected[b.ID]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Items returns every queued bundle in order.
func (q *Queue) Items() []*bundle.Bundle {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]*bundle.Bundle(nil), q.items...)
}

func (q *Queue) Get(id string) (*bundle.Bundle, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	return q.items[i], true
}

// Lookup returns the queued bundles with the given ids, in queue order.
// Unknown ids are skipped.
func (q *Queue) Lookup(ids []string) []*bundle.Bundle {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*bundle.Bundle
	for _, b := range q.items {
		if want[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

func (q *Queue) SelectedCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.selected)
}

// Clear empties the queue and returns what was in it.
func (q *Queue) Clear() []*bundle.Bundle {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	q.selected = make(map[string]struct{})
	return out
}

func (q *Queue) indexLocked(id string) int {
	for i, b := range q.items {
		if b.ID == id {
			return i
		}
	}
	return -1
}
