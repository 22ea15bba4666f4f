package pipeline

import (
	"context"
	"errors"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartwin/internal/pkg/metrics"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/internal/twin/persist"
	"github.com/autopeer-io/cartwin/internal/twin/pid"
	"github.com/autopeer-io/cartwin/pkg/log"
)

// StateUpdater applies a sample and returns the resulting snapshot.
type StateUpdater interface {
	Update(vehicleID, deviceID string, sample model.Sample) *model.Snapshot
}

// Persister writes snapshots at a bounded rate.
type Persister interface {
	MaybePersist(ctx context.Context, snap *model.Snapshot) persist.Outcome
}

// Broadcaster hands a snapshot over to the live subscriber side.
type Broadcaster interface {
	Submit(snap *model.Snapshot) error
}

// Pipeline runs resolve, decode, update, persist and broadcast for each
// inbound message. Handle is safe for concurrent use.
type Pipeline struct {
	router      *Router
	store       StateUpdater
	persister   Persister
	broadcaster Broadcaster
	clock       clock.PassiveClock
}

func New(router *Router, store StateUpdater, persister Persister, broadcaster Broadcaster, c clock.PassiveClock) *Pipeline {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Pipeline{
		router:      router,
		store:       store,
		persister:   persister,
		broadcaster: broadcaster,
		clock:       c,
	}
}

// Handle processes one message and logs why it was dropped, if it was.
// It has the signature of an MQTT message handler.
func (p *Pipeline) Handle(ctx context.Context, routingKey string, payload []byte) {
	if _, err := p.Process(ctx, routingKey, payload); err != nil {
		switch {
		case errors.Is(err, pid.ErrUndecodable), errors.Is(err, pid.ErrNoMeasurements):
			log.Warn("Dropped undecodable telemetry", "topic", routingKey, "payload", string(payload), "error", err)
		case errors.Is(err, ErrUnmappedDevice), errors.Is(err, ErrDeviceDisabled), errors.Is(err, ErrNoVehicleAssigned):
			log.Info("Dropped telemetry", "topic", routingKey, "reason", err.Error())
		case errors.Is(err, ErrResolveTimeout):
			log.Warn("Dropped telemetry, device directory did not answer in time", "topic", routingKey, "error", err)
		default:
			log.Error(err, "Failed to process telemetry", "topic", routingKey)
		}
	}
}

// Process runs the chain for one message and returns the post-update
// snapshot. Persistence and broadcast failures never surface here.
func (p *Pipeline) Process(ctx context.Context, routingKey string, payload []byte) (*model.Snapshot, error) {
	metrics.MessagesReceived.Inc()

	route, err := p.router.Resolve(ctx, routingKey)
	if err != nil {
		metrics.MessagesDropped.WithLabelValues(dropReason(err)).Inc()
		return nil, err
	}

	res, err := pid.Decode(routingKey, payload, p.clock.Now())
	if res != nil && len(res.Unmapped) > 0 {
		metrics.UnmappedCodes.Add(float64(len(res.Unmapped)))
		log.Debug("Ignored unknown measurement codes", "topic", routingKey, "codes", res.Unmapped)
	}
	if res != nil && len(res.Rejected) > 0 {
		log.Debug("Ignored measurements with unusable values", "topic", routingKey, "codes", res.Rejected)
	}
	if err != nil {
		metrics.MessagesDropped.WithLabelValues(dropReason(err)).Inc()
		return nil, err
	}

	snap := p.store.Update(route.VehicleID, route.DeviceID, res.Sample)

	if p.persister != nil {
		p.persister.MaybePersist(ctx, snap)
	}
	if p.broadcaster != nil {
		// Failures are logged by the broadcaster and never reach ingestion.
		_ = p.broadcaster.Submit(snap)
	}
	return snap, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, pid.ErrUndecodable), errors.Is(err, pid.ErrNoMeasurements):
		return "undecodable"
	case errors.Is(err, ErrUnmappedDevice):
		return "unmapped_device"
	case errors.Is(err, ErrDeviceDisabled):
		return "device_disabled"
	case errors.Is(err, ErrNoVehicleAssigned):
		return "no_vehicle"
	case errors.Is(err, ErrResolveTimeout):
		return "resolve_timeout"
	default:
		return "directory_error"
	}
}
