package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartwin/internal/pkg/metrics"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
)

// DefaultQueueSize is the hand-off queue length used when none is configured.
const DefaultQueueSize = 256

var (
	// ErrNotRunning is returned when work is handed to a hub whose loop is not running.
	ErrNotRunning = errors.New("broadcast loop is not running")

	// ErrQueueFull is returned when the hand-off queue has no room.
	ErrQueueFull = errors.New("broadcast queue is full")
)

const (
	taskBroadcast  = "broadcast"
	taskRegister   = "register"
	taskUnregister = "unregister"
)

// task is one unit of work for the hub loop. discard runs instead of run when
// the loop stops with the task still queued.
type task struct {
	kind    string
	run     func()
	discard func()
}

// SnapshotSource provides the state pushed to new subscribers.
type SnapshotSource interface {
	Read(vehicleID string) (*model.Snapshot, bool)
	ReadAll() []*model.Snapshot
}

// Hub owns the subscriber registry and fans updates out to it.
//
// Every registry mutation and every send runs on the goroutine executing Run.
// Other goroutines hand work over through Submit, Register and Unregister,
// none of which block.
type Hub struct {
	registry *Registry
	source   SnapshotSource
	clock    clock.PassiveClock

	// mu orders hand-offs against shutdown so nothing is queued after the
	// final drain.
	mu      sync.RWMutex
	tasks   chan task
	running atomic.Bool
}

// NewHub creates a hub. Run must be called before any work is accepted.
func NewHub(source SnapshotSource, c clock.PassiveClock, queueSize int) *Hub {
	if c == nil {
		c = clock.RealClock{}
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		registry: NewRegistry(),
		source:   source,
		clock:    c,
		tasks:    make(chan task, queueSize),
	}
}

// Run executes handed-off work until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return fmt.Errorf("broadcast hub already running")
	}
	log.Info("Broadcast hub started")
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-h.tasks:
			h.execute(t.run)
		}
	}
}

// shutdown stops accepting work, discards what is still queued and closes
// every registered subscriber.
func (h *Hub) shutdown() {
	h.mu.Lock()
	h.running.Store(false)
	h.mu.Unlock()

	var discarded int
	for drained := false; !drained; {
		select {
		case t := <-h.tasks:
			discarded++
			if t.discard != nil {
				h.execute(t.discard)
			}
		default:
			drained = true
		}
	}

	for _, s := range h.registry.Snapshot() {
		h.registry.Remove(s.ID())
		s.Close()
	}
	log.Info("Broadcast hub stopped", "discarded", discarded)
}

// Running reports whether the hub accepts work.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// Submit schedules a broadcast of snap to every matching subscriber. It never
// blocks; when the hub cannot take the work the broadcast is dropped.
func (h *Hub) Submit(snap *model.Snapshot) error {
	msg := NewMessage(snap, h.clock.Now())
	err := h.schedule(task{kind: taskBroadcast, run: func() { h.broadcast(msg) }})
	if err != nil {
		log.Warn("Dropped telemetry broadcast", "vehicle", snap.VehicleID, "reason", err.Error())
	}
	return err
}

// Register adds s and pushes the current state within its scope to it. If the
// hub stops before the registration runs, s is closed.
func (h *Hub) Register(s Subscriber) error {
	return h.schedule(task{
		kind: taskRegister,
		run: func() {
			h.registry.Add(s)
			log.Info("Subscriber registered", "subscriber", s.ID(), "vehicle", s.VehicleID(), "total", h.registry.Len())
			h.catchUp(s)
		},
		discard: s.Close,
	})
}

// Unregister removes s and closes it. When the loop is not running the
// removal happens immediately.
func (h *Hub) Unregister(s Subscriber) {
	remove := func() {
		if _, ok := h.registry.Remove(s.ID()); ok {
			log.Info("Subscriber unregistered", "subscriber", s.ID(), "total", h.registry.Len())
		}
		s.Close()
	}
	if err := h.schedule(task{kind: taskUnregister, run: remove, discard: remove}); err != nil {
		remove()
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	return h.registry.Len()
}

func (h *Hub) schedule(t task) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.running.Load() {
		metrics.HubTasksTotal.WithLabelValues(t.kind, "not_running").Inc()
		return ErrNotRunning
	}
	select {
	case h.tasks <- t:
		metrics.HubTasksTotal.WithLabelValues(t.kind, "scheduled").Inc()
		return nil
	default:
		metrics.HubTasksTotal.WithLabelValues(t.kind, "queue_full").Inc()
		return ErrQueueFull
	}
}

func (h *Hub) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("panic: %v", r), "Broadcast task panicked", "stack", string(debug.Stack()))
		}
	}()
	task()
}

// broadcast runs on the hub loop.
func (h *Hub) broadcast(msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error(err, "Failed to encode telemetry update", "vehicle", msg.VehicleID)
		return
	}

	for _, s := range h.registry.Snapshot() {
		if scope := s.VehicleID(); scope != "" && scope != msg.VehicleID {
			continue
		}
		h.deliver(s, payload)
	}
}

// catchUp runs on the hub loop.
func (h *Hub) catchUp(s Subscriber) {
	if h.source == nil {
		return
	}

	var snaps []*model.Snapshot
	if scope := s.VehicleID(); scope != "" {
		if snap, ok := h.source.Read(scope); ok {
			snaps = append(snaps, snap)
		}
	} else {
		snaps = h.source.ReadAll()
	}

	now := h.clock.Now()
	for _, snap := range snaps {
		payload, err := json.Marshal(NewMessage(snap, now))
		if err != nil {
			log.Error(err, "Failed to encode catch-up snapshot", "vehicle", snap.VehicleID)
			continue
		}
		if !h.deliver(s, payload) {
			return
		}
	}
}

// deliver sends payload to s and evicts s on failure.
func (h *Hub) deliver(s Subscriber, payload []byte) bool {
	if err := s.Send(payload); err != nil {
		h.registry.Remove(s.ID())
		s.Close()
		metrics.SubscriberEvictions.Inc()
		log.Warn("Removed live subscriber after failed send", "subscriber", s.ID(), "error", err)
		return false
	}
	return true
}
