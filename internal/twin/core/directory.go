package core

import (
	"context"
	"errors"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

// ErrNotFound is returned by directory lookups when nothing matches.
var ErrNotFound = errors.New("not found")

// DeviceDirectory resolves devices and their vehicle assignments.
// Implementations are read by the ingestion path concurrently.
type DeviceDirectory interface {
	// LookupDeviceByRoutingKey returns the device publishing on key, or ErrNotFound.
	LookupDeviceByRoutingKey(ctx context.Context, key string) (*model.Device, error)

	// ActiveAssignment returns the device's active assignment, or ErrNotFound.
	ActiveAssignment(ctx context.Context, deviceID string) (*model.Assignment, error)
}
