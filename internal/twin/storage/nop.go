package storage

import (
	"context"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
)

// Nop discards records. It backs deployments without a durable store.
type Nop struct{}

var _ core.TelemetryWriter = Nop{}

func (Nop) InsertTelemetry(_ context.Context, rec *model.TelemetryRecord) error {
	log.Debug("Discarded telemetry record", "vehicle", rec.VehicleID, "fields", len(rec.Fields))
	return nil
}
