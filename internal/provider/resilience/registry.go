package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level summarises a provider's breaker state for status reporting.
type Level int

const (
	// LevelOK means the breaker is closed.
	LevelOK Level = iota
	// LevelDegraded means the breaker is probing the provider.
	LevelDegraded
	// LevelDown means the breaker is open and requests fail fast.
	LevelDown
)

// Health is a point-in-time view of one provider.
type Health struct {
	Name   string
	State  gobreaker.State
	Counts gobreaker.Counts

	// StateSince is when the breaker entered State; zero if it never changed.
	StateSince time.Time

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Level maps the breaker state.
func (h Health) Level() Level {
	switch h.State {
	case gobreaker.StateOpen:
		return LevelDown
	case gobreaker.StateHalfOpen:
		return LevelDegraded
	default:
		return LevelOK
	}
}

// Registry tracks the health of every provider client. A nil *Registry
// ignores all updates.
type Registry struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	client        *Client
	stateSince    time.Time
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Register adds c under its name, replacing any earlier client of that name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[c.Name()] = &entry{client: c}
}

// Health returns the health of the named provider.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var snap entry
	if ok {
		snap = *e
	}
	r.mu.RUnlock()

	if !ok {
		return Health{}, false
	}
	return snap.health(name), true
}

// All returns the health of every provider, sorted by name.
func (r *Registry) All() []Health {
	r.mu.RLock()
	snaps := make(map[string]entry, len(r.entries))
	for name, e := range r.entries {
		snaps[name] = *e
	}
	r.mu.RUnlock()

	out := make([]Health, 0, len(snaps))
	for name, e := range snaps {
		out = append(out, e.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// health reads the breaker, so it must not run under the registry lock: the
// breaker calls back into the registry on state changes.
func (e entry) health(name string) Health {
	return Health{
		Name:          name,
		State:         e.client.State(),
		Counts:        e.client.Counts(),
		StateSince:    e.stateSince,
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}

func (r *Registry) update(name string, fn func(e *entry, now time.Time)) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		fn(e, r.now())
	}
}

func (r *Registry) recordSuccess(name string) {
	r.update(name, func(e *entry, now time.Time) {
		e.lastSuccessAt = &now
	})
}

func (r *Registry) recordFailure(name string, err error) {
	r.update(name, func(e *entry, now time.Time) {
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	})
}

func (r *Registry) recordTransition(name string, _ gobreaker.State) {
	r.update(name, func(e *entry, now time.Time) {
		e.stateSince = now
	})
}
