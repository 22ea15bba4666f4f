package persist

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartwin/internal/pkg/metrics"
	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 3 * time.Second
)

// Outcome is what MaybePersist did with a snapshot.
type Outcome string

const (
	Written Outcome = "written"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Gate limits durable writes to one per interval and vehicle.
//
// The window opens when an attempt starts, so a failed write is retried with
// the next snapshot after the interval rather than on every message.
type Gate struct {
	writer   core.TelemetryWriter
	clock    clock.PassiveClock
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	lastAttempt map[string]time.Time
}

// NewGate returns a gate writing through w.
func NewGate(w core.TelemetryWriter, c clock.PassiveClock, interval, timeout time.Duration) *Gate {
	if c == nil {
		c = clock.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		writer:      w,
		clock:       c,
		interval:    interval,
		timeout:     timeout,
		lastAttempt: make(map[string]time.Time),
	}
}

// MaybePersist writes the snapshot's latest values when the vehicle's window
// is open. Errors are logged and reported through the outcome only.
func (g *Gate) MaybePersist(ctx context.Context, snap *model.Snapshot) Outcome {
	if g.writer == nil || !g.reserve(snap.VehicleID) {
		metrics.PersistTotal.WithLabelValues(string(Skipped)).Inc()
		return Skipped
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := g.clock.Now()
	err := g.writer.InsertTelemetry(ctx, snap.Record(start))
	metrics.PersistLatency.Observe(g.clock.Since(start).Seconds())
	if err != nil {
		metrics.PersistTotal.WithLabelValues(string(Failed)).Inc()
		log.Error(err, "Failed to persist telemetry", "vehicle", snap.VehicleID, "device", snap.DeviceID)
		return Failed
	}

	metrics.PersistTotal.WithLabelValues(string(Written)).Inc()
	log.Debug("Persisted telemetry", "vehicle", snap.VehicleID, "fields", len(snap.Latest))
	return Written
}

// reserve opens the vehicle's window if the interval has elapsed.
func (g *Gate) reserve(vehicleID string) bool {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastAttempt[vehicleID]; ok && now.Sub(last) < g.interval {
		return false
	}
	g.lastAttempt[vehicleID] = now
	return true
}
