package state

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/utils/clock"

	fsmutil "github.com/autopeer-io/cartwin/internal/pkg/util/fsm"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
)

// DefaultHistorySize is the ring buffer capacity used when none is configured.
const DefaultHistorySize = 100

// Store is the in-memory source of truth for vehicle telemetry.
//
// Each vehicle has its own lock; the map lock is only held to find or create
// an entry, so vehicles never contend with each other.
type Store struct {
	clock    clock.PassiveClock
	capacity int

	mu       sync.RWMutex
	vehicles map[string]*vehicle
}

type vehicle struct {
	mu sync.Mutex

	id         string
	deviceID   string
	latest     model.Fields
	history    *ring[model.Sample]
	liveness   *fsm.FSM
	lastSeenAt time.Time
}

// NewStore creates a store keeping capacity samples per vehicle.
func NewStore(c clock.PassiveClock, capacity int) *Store {
	if c == nil {
		c = clock.RealClock{}
	}
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &Store{
		clock:    c,
		capacity: capacity,
		vehicles: make(map[string]*vehicle),
	}
}

// Update merges sample into the vehicle's latest values, appends it to the
// history, marks the vehicle running and returns the resulting snapshot.
func (s *Store) Update(vehicleID, deviceID string, sample model.Sample) *model.Snapshot {
	v := s.getOrCreate(vehicleID)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.latest.Merge(sample.Fields)
	v.history.push(sample)
	v.lastSeenAt = s.clock.Now()
	if deviceID != "" {
		v.deviceID = deviceID
	}
	if _, err := fsmutil.Fire(context.Background(), v.liveness, eventResume); err != nil {
		log.Error(err, "Failed to resume vehicle liveness", "vehicle", vehicleID)
	}

	return v.snapshot()
}

// Read returns the vehicle's current snapshot.
func (s *Store) Read(vehicleID string) (*model.Snapshot, bool) {
	s.mu.RLock()
	v, ok := s.vehicles[vehicleID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot(), true
}

// ReadAll returns a snapshot of every known vehicle ordered by vehicle ID.
func (s *Store) ReadAll() []*model.Snapshot {
	entries := s.entries()
	out := make([]*model.Snapshot, 0, len(entries))
	for _, v := range entries {
		v.mu.Lock()
		out = append(out, v.snapshot())
		v.mu.Unlock()
	}
	return out
}

// MarkOffline moves the vehicle to offline. changed is false when the
// vehicle is unknown or already offline.
func (s *Store) MarkOffline(vehicleID string) (snap *model.Snapshot, changed bool) {
	s.mu.RLock()
	v, ok := s.vehicles[vehicleID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.markOffline()
}

// ExpireSilent marks offline every running vehicle whose last sample is
// older than timeout and returns their snapshots.
func (s *Store) ExpireSilent(timeout time.Duration) []*model.Snapshot {
	now := s.clock.Now()

	var expired []*model.Snapshot
	for _, v := range s.entries() {
		v.mu.Lock()
		if v.liveness.Is(string(model.LivenessRunning)) && now.Sub(v.lastSeenAt) > timeout {
			if snap, changed := v.markOffline(); changed {
				expired = append(expired, snap)
			}
		}
		v.mu.Unlock()
	}
	return expired
}

// Len returns the number of known vehicles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles)
}

func (s *Store) getOrCreate(vehicleID string) *vehicle {
	s.mu.RLock()
	v, ok := s.vehicles[vehicleID]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vehicles[vehicleID]; ok {
		return v
	}
	v = &vehicle{
		id:       vehicleID,
		latest:   model.Fields{},
		history:  newRing[model.Sample](s.capacity),
		liveness: newLivenessFSM(),
	}
	s.vehicles[vehicleID] = v
	log.Info("Tracking new vehicle", "vehicle", vehicleID)
	return v
}

func (s *Store) entries() []*vehicle {
	s.mu.RLock()
	out := make([]*vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *vehicle) int { return strings.Compare(a.id, b.id) })
	return out
}

// markOffline must be called with v.mu held.
func (v *vehicle) markOffline() (*model.Snapshot, bool) {
	changed, err := fsmutil.Fire(context.Background(), v.liveness, eventOffline)
	if err != nil {
		log.Error(err, "Failed to mark vehicle offline", "vehicle", v.id)
	}
	return v.snapshot(), changed
}

// snapshot must be called with v.mu held.
func (v *vehicle) snapshot() *model.Snapshot {
	return &model.Snapshot{
		VehicleID:  v.id,
		DeviceID:   v.deviceID,
		Liveness:   model.Liveness(v.liveness.Current()),
		Latest:     v.latest.Clone(),
		History:    v.history.items(),
		LastSeenAt: v.lastSeenAt,
	}
}
