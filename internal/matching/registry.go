package matching

import (
	"sort"
	"sync"
)

// MatchLookup reports whether an event is an auto-matched suggestion for the current viewer.
type MatchLookup interface {
	IsMatch(eventID string) bool
}

// Registry is the set of event IDs flagged as potential matches for one viewer.
// It is rebuilt on every invitation scan and is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Clear removes every registered ID.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]struct{})
}

// Register flags eventID as a potential match. Empty IDs are ignored.
func (r *Registry) Register(eventID string) {
	if eventID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[eventID] = struct{}{}
}

// Replace clears the registry and registers ids in one step.
func (r *Registry) Replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			next[id] = struct{}{}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = next
}

// IsMatch implements MatchLookup. A nil Registry matches nothing.
func (r *Registry) IsMatch(eventID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[eventID]
	return ok
}

// AllIDs returns the registered IDs sorted ascending.
func (r *Registry) AllIDs() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of registered IDs.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Added returns the IDs registered in r but not in prev, sorted ascending.
func (r *Registry) Added(prev *Registry) []string {
	var out []string
	for _, id := range r.AllIDs() {
		if !prev.IsMatch(id) {
			out = append(out, id)
		}
	}
	return out
}
