package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/mqtt/topic"
)

var (
	ErrUnmappedDevice    = errors.New("unmapped device")
	ErrDeviceDisabled    = errors.New("device disabled")
	ErrNoVehicleAssigned = errors.New("no vehicle assigned")
	ErrResolveTimeout    = errors.New("resolve timed out")
)

// Route is the outcome of resolving a routing key.
type Route struct {
	VehicleID string
	DeviceID  string

	// DeviceKey is the routing key the device was found under. It is the
	// parent of the message's key for per-measurement topics.
	DeviceKey string
}

// Router resolves routing keys to the vehicle their data belongs to.
type Router struct {
	directory core.DeviceDirectory
	timeout   time.Duration
}

// NewRouter returns a Router bounding each resolution by timeout. A
// non-positive timeout leaves resolution bounded only by the caller's context.
func NewRouter(directory core.DeviceDirectory, timeout time.Duration) *Router {
	return &Router{directory: directory, timeout: timeout}
}

// Resolve looks the device up by key, falling back to the key's parent, then
// checks that it is active and assigned to a vehicle.
func (r *Router) Resolve(ctx context.Context, key string) (*Route, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	route, err := r.resolve(ctx, key)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return nil, fmt.Errorf("%w: %q: %w", ErrResolveTimeout, key, err)
	}
	return route, err
}

func (r *Router) resolve(ctx context.Context, key string) (*Route, error) {
	device, deviceKey, err := r.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	if device.Status != model.DeviceActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrDeviceDisabled, device.ID, device.Status)
	}

	assignment, err := r.directory.ActiveAssignment(ctx, device.ID)
	if errors.Is(err, core.ErrNotFound) || (err == nil && !assignment.Active) {
		return nil, fmt.Errorf("%w: device %s", ErrNoVehicleAssigned, device.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup assignment of device %s: %w", device.ID, err)
	}

	return &Route{
		VehicleID: assignment.VehicleID,
		DeviceID:  device.ID,
		DeviceKey: deviceKey,
	}, nil
}

func (r *Router) lookup(ctx context.Context, key string) (*model.Device, string, error) {
	device, err := r.directory.LookupDeviceByRoutingKey(ctx, key)
	if err == nil {
		return device, key, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, "", fmt.Errorf("lookup device %q: %w", key, err)
	}

	parent, ok := topic.Parent(key)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnmappedDevice, key)
	}
	device, err = r.directory.LookupDeviceByRoutingKey(ctx, parent)
	if errors.Is(err, core.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %q", ErrUnmappedDevice, key)
	}
	if err != nil {
		return nil, "", fmt.Errorf("lookup device %q: %w", parent, err)
	}
	return device, parent, nil
}
