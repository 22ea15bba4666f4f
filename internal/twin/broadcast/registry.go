package broadcast

import (
	"slices"
	"strings"
	"sync"

	"github.com/autopeer-io/cartwin/internal/pkg/metrics"
)

// Subscriber is a live viewing connection.
type Subscriber interface {
	// ID identifies the subscriber in the registry.
	ID() string

	// VehicleID scopes the subscription to one vehicle. Empty means every vehicle.
	VehicleID() string

	// Send queues msg without blocking. An error means the subscriber is
	// unusable and must be dropped.
	Send(msg []byte) error

	// Close releases the subscriber. It is safe to call more than once.
	Close()
}

// Registry tracks the currently registered subscribers.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]Subscriber)}
}

// Add registers s, replacing any subscriber with the same ID.
func (r *Registry) Add(s Subscriber) {
	r.mu.Lock()
	r.subs[s.ID()] = s
	n := len(r.subs)
	r.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
}

// Remove unregisters the subscriber with the given ID and returns it.
func (r *Registry) Remove(id string) (Subscriber, bool) {
	r.mu.Lock()
	s, ok := r.subs[id]
	delete(r.subs, id)
	n := len(r.subs)
	r.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	return s, ok
}

// Snapshot returns the registered subscribers ordered by ID. Callers iterate
// the copy, so the registry may change while they do.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.RLock()
	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Subscriber) int { return strings.Compare(a.ID(), b.ID()) })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
