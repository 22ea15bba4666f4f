package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/internal/twin/directory"
)

func newFleet(t *testing.T) *directory.Memory {
	t.Helper()
	m := directory.NewMemory()
	require.NoError(t, m.PutDevice(model.Device{ID: "D1", Code: "device1", RoutingKey: "wincan/device1"}))
	require.NoError(t, m.PutDevice(model.Device{ID: "D2", Code: "device2", RoutingKey: "wincan/device2"}))
	require.NoError(t, m.PutDevice(model.Device{ID: "D3", Code: "device3", RoutingKey: "wincan/device3", Status: model.DeviceMaintenance}))
	_, err := m.Assign("D1", "V1", "", time.Unix(0, 0))
	require.NoError(t, err)
	_, err = m.Assign("D3", "V3", "", time.Unix(0, 0))
	require.NoError(t, err)
	return m
}

func TestRouterResolve(t *testing.T) {
	r := NewRouter(newFleet(t), time.Second)
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		want    *Route
		wantErr error
	}{
		{
			name: "exact key",
			key:  "wincan/device1",
			want: &Route{VehicleID: "V1", DeviceID: "D1", DeviceKey: "wincan/device1"},
		},
		{
			name: "per-measurement key falls back to the device key",
			key:  "wincan/device1/0C-EngineRPM",
			want: &Route{VehicleID: "V1", DeviceID: "D1", DeviceKey: "wincan/device1"},
		},
		{name: "unknown device", key: "wincan/device9", wantErr: ErrUnmappedDevice},
		{name: "single level unknown key", key: "device9", wantErr: ErrUnmappedDevice},
		{name: "only one parent level is tried", key: "wincan/device1/a/b", wantErr: ErrUnmappedDevice},
		{name: "no active assignment", key: "wincan/device2", wantErr: ErrNoVehicleAssigned},
		{name: "device in maintenance", key: "wincan/device3", wantErr: ErrDeviceDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type failingDirectory struct {
	*directory.Memory
}

func (failingDirectory) LookupDeviceByRoutingKey(context.Context, string) (*model.Device, error) {
	return nil, errors.New("database is down")
}

func TestRouterDirectoryError(t *testing.T) {
	r := NewRouter(failingDirectory{newFleet(t)}, time.Second)

	_, err := r.Resolve(context.Background(), "wincan/device1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnmappedDevice)
	assert.Equal(t, "directory_error", dropReason(err))
}

// stalledDirectory never answers device lookups until the context ends.
type stalledDirectory struct {
	*directory.Memory
}

func (stalledDirectory) LookupDeviceByRoutingKey(ctx context.Context, _ string) (*model.Device, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRouterResolveTimeout(t *testing.T) {
	r := NewRouter(stalledDirectory{newFleet(t)}, 20*time.Millisecond)

	start := time.Now()
	got, err := r.Resolve(context.Background(), "wincan/device1")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, got)
	require.ErrorIs(t, err, ErrResolveTimeout)
	assert.Equal(t, "resolve_timeout", dropReason(err))
}

func TestRouterResolveCallerCanceled(t *testing.T) {
	r := NewRouter(stalledDirectory{newFleet(t)}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "wincan/device1")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrResolveTimeout)
}
