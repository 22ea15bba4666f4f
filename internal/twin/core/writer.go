package core

import (
	"context"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

// TelemetryWriter writes snapshots to durable storage.
type TelemetryWriter interface {
	InsertTelemetry(ctx context.Context, rec *model.TelemetryRecord) error
}

// TelemetryWriterFunc adapts a function to TelemetryWriter.
type TelemetryWriterFunc func(ctx context.Context, rec *model.TelemetryRecord) error

func (f TelemetryWriterFunc) InsertTelemetry(ctx context.Context, rec *model.TelemetryRecord) error {
	return f(ctx, rec)
}
