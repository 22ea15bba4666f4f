package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartwin/internal/twin/core"
)

const fleetYAML = `
devices:
  - id: D1
    code: device1
    topic: wincan/device1
    status: active
  - id: D2
    code: device2
    topic: wincan/device2
    status: maintenance
assignments:
  - device: D1
    vehicle: V0
    active: true
    assigned_at: 2025-01-01T00:00:00Z
  - device: D1
    vehicle: V1
    active: true
    assigned_at: 2025-02-01T00:00:00Z
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(fleetYAML))
	require.NoError(t, err)

	ctx := context.Background()
	d, err := m.LookupDeviceByRoutingKey(ctx, "wincan/device2")
	require.NoError(t, err)
	assert.Equal(t, "device2", d.Code)

	a, err := m.ActiveAssignment(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "V1", a.VehicleID)
	assert.Len(t, m.Assignments("D1"), 2)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("devices: [oops"))
	assert.Error(t, err)

	_, err = Parse([]byte("assignments:\n  - device: D9\n    vehicle: V1\n    active: true\n"))
	assert.Error(t, err)
}

func TestFileWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fleetYAML), 0o600))

	f, err := NewFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Watch(ctx) }()

	_, err = f.LookupDeviceByRoutingKey(ctx, "wincan/device3")
	require.ErrorIs(t, err, core.ErrNotFound)

	updated := `
devices:
  - id: D3
    code: device3
    topic: wincan/device3
assignments:
  - device: D3
    vehicle: V3
    active: true
    assigned_at: 2025-03-01T00:00:00Z
`

	assert.Eventually(t, func() bool {
		// Rewrite until the watcher is registered and has seen a change.
		_ = os.WriteFile(path, []byte(updated), 0o600)
		_, err := f.LookupDeviceByRoutingKey(ctx, "wincan/device3")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	a, err := f.ActiveAssignment(ctx, "D3")
	require.NoError(t, err)
	assert.Equal(t, "V3", a.VehicleID)

	require.NoError(t, os.WriteFile(path, []byte("devices: [broken"), 0o600))
	time.Sleep(100 * time.Millisecond)
	_, err = f.LookupDeviceByRoutingKey(ctx, "wincan/device3")
	assert.NoError(t, err, "a broken file keeps the previous contents")

	cancel()
	assert.NoError(t, <-done)
}
