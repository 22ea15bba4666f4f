package model

import "time"

// DeviceStatus is the operational status of a data-collection device.
type DeviceStatus string

const (
	DeviceActive      DeviceStatus = "active"
	DeviceInactive    DeviceStatus = "inactive"
	DeviceMaintenance DeviceStatus = "maintenance"
)

// Valid reports whether s is one of the known statuses.
func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceActive, DeviceInactive, DeviceMaintenance:
		return true
	}
	return false
}

// Device is a physical OBD-II adapter identified by the topic it publishes on.
type Device struct {
	// ID is the directory's identifier for the device.
	ID string `json:"id" yaml:"id"`

	// Code is the human-facing device code, e.g. "device1".
	Code string `json:"device_code" yaml:"code"`

	// RoutingKey is the MQTT topic the device publishes on, e.g. "wincan/device1".
	RoutingKey string `json:"mqtt_topic" yaml:"topic"`

	Status DeviceStatus `json:"status" yaml:"status"`
}

// Assignment binds a device to the vehicle its data currently belongs to.
// At most one assignment per device is active at a time.
type Assignment struct {
	DeviceID  string `json:"device_id" yaml:"device"`
	VehicleID string `json:"vehicle_id" yaml:"vehicle"`
	Active    bool   `json:"is_active" yaml:"active"`

	AssignedAt   time.Time  `json:"assigned_at" yaml:"assigned_at"`
	UnassignedAt *time.Time `json:"unassigned_at,omitempty" yaml:"unassigned_at,omitempty"`

	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}
