package directory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

// Memory is an in-process device directory.
//
// It keeps at most one active assignment per device: assigning a device
// closes the previous active assignment.
type Memory struct {
	mu          sync.RWMutex
	devices     map[string]*model.Device
	byKey       map[string]string
	assignments map[string][]*model.Assignment
}

var _ core.DeviceDirectory = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		devices:     make(map[string]*model.Device),
		byKey:       make(map[string]string),
		assignments: make(map[string][]*model.Assignment),
	}
}

// PutDevice adds or replaces a device.
func (m *Memory) PutDevice(d model.Device) error {
	if d.ID == "" || d.RoutingKey == "" {
		return fmt.Errorf("device needs an id and a topic")
	}
	if d.Status == "" {
		d.Status = model.DeviceActive
	}
	if !d.Status.Valid() {
		return fmt.Errorf("device %s: invalid status %q", d.ID, d.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.byKey[d.RoutingKey]; ok && owner != d.ID {
		return fmt.Errorf("topic %q already belongs to device %s", d.RoutingKey, owner)
	}
	if old, ok := m.devices[d.ID]; ok {
		delete(m.byKey, old.RoutingKey)
	}
	m.devices[d.ID] = &d
	m.byKey[d.RoutingKey] = d.ID
	return nil
}

// SetStatus changes a device's operational status.
func (m *Memory) SetStatus(deviceID string, status model.DeviceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return fmt.Errorf("device %s: %w", deviceID, core.ErrNotFound)
	}
	updated := *d
	updated.Status = status
	m.devices[deviceID] = &updated
	return nil
}

// Assign binds the device to a vehicle, deactivating its current assignment.
func (m *Memory) Assign(deviceID, vehicleID, notes string, at time.Time) (*model.Assignment, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicle id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[deviceID]; !ok {
		return nil, fmt.Errorf("device %s: %w", deviceID, core.ErrNotFound)
	}
	m.closeActive(deviceID, at)

	a := &model.Assignment{
		DeviceID:   deviceID,
		VehicleID:  vehicleID,
		Active:     true,
		AssignedAt: at,
		Notes:      notes,
	}
	m.assignments[deviceID] = append(m.assignments[deviceID], a)
	out := *a
	return &out, nil
}

// record appends an assignment as loaded from a document. An active one
// closes the device's previous active assignment.
func (m *Memory) record(a model.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[a.DeviceID]; !ok {
		return fmt.Errorf("assignment references unknown device %s", a.DeviceID)
	}
	if a.VehicleID == "" {
		return fmt.Errorf("assignment of device %s has no vehicle", a.DeviceID)
	}
	if a.Active {
		m.closeActive(a.DeviceID, a.AssignedAt)
	}
	m.assignments[a.DeviceID] = append(m.assignments[a.DeviceID], &a)
	return nil
}

// Unassign ends the device's active assignment, if any.
func (m *Memory) Unassign(deviceID string, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeActive(deviceID, at)
}

func (m *Memory) closeActive(deviceID string, at time.Time) bool {
	closed := false
	for i, a := range m.assignments[deviceID] {
		if a.Active {
			ended := *a
			ended.Active = false
			ended.UnassignedAt = &at
			m.assignments[deviceID][i] = &ended
			closed = true
		}
	}
	return closed
}

func (m *Memory) LookupDeviceByRoutingKey(_ context.Context, key string) (*model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	d := *m.devices[id]
	return &d, nil
}

func (m *Memory) ActiveAssignment(_ context.Context, deviceID string) (*model.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range slices.Backward(m.assignments[deviceID]) {
		if a.Active {
			out := *a
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

// Devices lists the known devices ordered by ID.
func (m *Memory) Devices() []model.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b model.Device) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Assignments returns the device's assignment history, oldest first.
func (m *Memory) Assignments(deviceID string) []model.Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Assignment, 0, len(m.assignments[deviceID]))
	for _, a := range m.assignments[deviceID] {
		out = append(out, *a)
	}
	return out
}
