// ABOUTME: Output registry holding finished agent results for the detail panel
// ABOUTME: Entries keep their first publish position; republishing replaces in place

package outputs

import (
	"sync"
	"time"
)

// Entry is one published agent result.
type Entry struct {
	ID        string
	AgentName string
	Output    string
	UpdatedAt time.Time
}

// Registry is an insertion-ordered set of entries keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Publish stores an entry. An entry with a known ID replaces the existing one
// at its original position; otherwise it is appended. Returns the entry's
// position and whether an existing entry was replaced.
func (r *Registry) Publish(e Entry) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	if i, ok := r.index[e.ID]; ok {
		r.entries[i] = e
		return i, true
	}

	r.entries = append(r.entries, e)
	i := len(r.entries) - 1
	r.index[e.ID] = i
	return i, false
}

// Get returns the entry with the given ID.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// At returns the entry at position i.
func (r *Registry) At(i int) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.entries) {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of all entries in publish order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.index = make(map[string]int)
}
