package model

import (
	"maps"
	"time"
)

// Fields maps a canonical measurement name to its value. Values are int64,
// float64 or string.
type Fields map[string]any

// Clone returns a shallow copy of f. Values are immutable scalars.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Merge overwrites the entries of f with those present in update and leaves
// every other entry untouched.
func (f Fields) Merge(update Fields) {
	maps.Copy(f, update)
}

// Sample is one decoded message. It is never modified after creation.
type Sample struct {
	Fields     Fields    `json:"data"`
	CapturedAt time.Time `json:"timestamp"`
}

// Liveness tells whether a vehicle is currently reporting.
type Liveness string

const (
	LivenessRunning Liveness = "running"
	LivenessOffline Liveness = "offline"
)

// Snapshot is a consistent copy of a vehicle's telemetry state.
type Snapshot struct {
	VehicleID  string    `json:"vehicle_id"`
	DeviceID   string    `json:"device_id,omitempty"`
	Liveness   Liveness  `json:"state"`
	Latest     Fields    `json:"data"`
	History    []Sample  `json:"history"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// TelemetryRecord is the row handed to a durable writer.
type TelemetryRecord struct {
	VehicleID  string
	DeviceID   string
	Fields     Fields
	RecordedAt time.Time
}

// Record builds the durable representation of the snapshot's latest values.
func (s *Snapshot) Record(at time.Time) *TelemetryRecord {
	return &TelemetryRecord{
		VehicleID:  s.VehicleID,
		DeviceID:   s.DeviceID,
		Fields:     s.Latest.Clone(),
		RecordedAt: at,
	}
}
