package views

import (
	"sync"
	"time"

	"survey-bknd/internal/filters"
	"survey-bknd/internal/hierarchy"
	"survey-bknd/internal/units"
)

// ListView ties the filters of one session to its location options and record stream.
type ListView struct {
	ID string

	defaultSize int
	maxSize     int
	resolver    *hierarchy.Resolver
	stream      *units.Stream

	mu       sync.Mutex
	filters  filters.State
	lastSeen time.Time
	closed   bool
}

type ListSnapshot struct {
	ID      string            `json:"id"`
	Filters filters.State     `json:"filters"`
	Options hierarchy.Options `json:"options"`
	Query   units.Snapshot    `json:"query"`
}

func (v *ListView) start(f filters.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filters = f.Normalize(v.defaultSize, v.maxSize)
	v.resolver.Select(v.filters.Selection())
	v.stream.Trigger(v.filters)
}

// Apply updates the filters. An update that leaves the filters unchanged
// triggers nothing.
func (v *ListView) Apply(p filters.Patch) filters.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return v.filters
	}

	next := p.Apply(v.filters).Normalize(v.defaultSize, v.maxSize)
	if next.Equal(v.filters) {
		return next
	}
	v.filters = next
	v.resolver.Select(next.Selection())
	v.stream.Trigger(next)
	return next
}

// Retry reloads the current page immediately.
func (v *ListView) Retry() {
	v.stream.Retry()
}

func (v *ListView) Snapshot() ListSnapshot {
	v.mu.Lock()
	f := v.filters
	v.mu.Unlock()
	return ListSnapshot{
		ID:      v.ID,
		Filters: f,
		Options: v.resolver.Options(),
		Query:   v.stream.Snapshot(),
	}
}

func (v *ListView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.stream.Close()
	v.resolver.Close()
}

func (v *ListView) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *ListView) idleSince(cutoff time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen.Before(cutoff)
}
