package broadcast

import (
	"time"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

// TypeTelemetryUpdate is the only message type pushed to live subscribers.
const TypeTelemetryUpdate = "telemetry_update"

// Message is the JSON document sent to live subscribers.
type Message struct {
	Type      string         `json:"type"`
	VehicleID string         `json:"vehicle_id"`
	State     model.Liveness `json:"state"`
	Data      model.Fields   `json:"data"`
	History   []model.Sample `json:"history"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessage builds the update message for a snapshot.
func NewMessage(snap *model.Snapshot, now time.Time) *Message {
	history := snap.History
	if history == nil {
		history = []model.Sample{}
	}
	data := snap.Latest
	if data == nil {
		data = model.Fields{}
	}
	return &Message{
		Type:      TypeTelemetryUpdate,
		VehicleID: snap.VehicleID,
		State:     snap.Liveness,
		Data:      data,
		History:   history,
		Timestamp: now,
	}
}
