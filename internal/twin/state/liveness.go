package state

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/cartwin/internal/pkg/metrics"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

const (
	eventOffline = "offline"
	eventResume  = "resume"
)

// newLivenessFSM builds the per-vehicle running/offline machine. A vehicle
// starts running on its first sample.
func newLivenessFSM() *fsm.FSM {
	metrics.Vehicles.WithLabelValues(string(model.LivenessRunning)).Inc()

	return fsm.NewFSM(
		string(model.LivenessRunning),
		fsm.Events{
			{Name: eventOffline, Src: []string{string(model.LivenessRunning)}, Dst: string(model.LivenessOffline)},
			{Name: eventResume, Src: []string{string(model.LivenessOffline)}, Dst: string(model.LivenessRunning)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				metrics.Vehicles.WithLabelValues(e.Src).Dec()
				metrics.Vehicles.WithLabelValues(e.Dst).Inc()
				metrics.LivenessTransitions.WithLabelValues(e.Dst).Inc()
			},
		},
	)
}
