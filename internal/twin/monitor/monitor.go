package monitor

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
)

// Expirer demotes silent vehicles and returns their final snapshots.
type Expirer interface {
	ExpireSilent(timeout time.Duration) []*model.Snapshot
}

// Notifier publishes a snapshot to live subscribers.
type Notifier interface {
	Submit(snap *model.Snapshot) error
}

// Monitor periodically marks vehicles offline once they have been silent
// for longer than the timeout, broadcasting each transition once.
type Monitor struct {
	store    Expirer
	notifier Notifier
	clock    clock.WithTicker
	interval time.Duration
	timeout  time.Duration
}

func New(store Expirer, notifier Notifier, c clock.WithTicker, interval, timeout time.Duration) (*Monitor, error) {
	if interval <= 0 || timeout <= 0 {
		return nil, fmt.Errorf("liveness interval and timeout must be positive")
	}
	if interval > timeout/2 {
		return nil, fmt.Errorf("liveness check interval %s exceeds half the silence timeout %s", interval, timeout)
	}
	if c == nil {
		c = clock.RealClock{}
	}
	return &Monitor{
		store:    store,
		notifier: notifier,
		clock:    c,
		interval: interval,
		timeout:  timeout,
	}, nil
}

// Run checks liveness every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info("Liveness monitor started", "interval", m.interval, "timeout", m.timeout)
	for {
		select {
		case <-ctx.Done():
			log.Info("Liveness monitor stopped")
			return nil
		case <-ticker.C():
			m.Check()
		}
	}
}

// Check runs one liveness pass and returns how many vehicles went offline.
func (m *Monitor) Check() int {
	expired := m.store.ExpireSilent(m.timeout)
	for _, snap := range expired {
		log.Info("Vehicle went offline", "vehicle", snap.VehicleID, "lastSeen", snap.LastSeenAt)
		if m.notifier != nil {
			// Submit logs its own failures.
			_ = m.notifier.Submit(snap)
		}
	}
	return len(expired)
}
