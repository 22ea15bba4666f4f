package twin

import (
	"context"
	"time"

	"github.com/autopeer-io/cartwin/internal/twin/pipeline"
	"github.com/autopeer-io/cartwin/internal/twin/server"
	"github.com/autopeer-io/cartwin/internal/twin/state"
	"github.com/autopeer-io/cartwin/pkg/log"
)

const prepareTimeout = 10 * time.Second

// TwinServer runs the telemetry pipeline: MQTT ingress, the live HTTP
// surface, the broadcast hub and the liveness monitor.
type TwinServer struct {
	serverManager *server.Manager
	resources     *resources

	store *state.Store

	// pipeline is the handler the MQTT server feeds.
	pipeline *pipeline.Pipeline
}

// Run blocks until ctx is cancelled or a server fails.
func (s *TwinServer) Run(ctx context.Context) error {
	defer func() {
		if err := s.resources.close(); err != nil {
			log.Error(err, "Failed to release resources")
		}
	}()

	prepareCtx, cancel := context.WithTimeout(ctx, prepareTimeout)
	err := s.resources.prepare(prepareCtx)
	cancel()
	if err != nil {
		return err
	}

	log.Info("Starting cartwin", "servers", s.serverManager.Len())
	err = s.serverManager.Start(ctx)
	log.Info("Stopped cartwin", "vehicles", s.store.Len())
	return err
}
