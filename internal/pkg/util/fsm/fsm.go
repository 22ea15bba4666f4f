package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Fire triggers event on f. It reports whether the state changed and treats
// "already in the target state" as a no-op rather than an error.
func Fire(ctx context.Context, f *fsm.FSM, event string) (bool, error) {
	if !f.Can(event) {
		return false, nil
	}
	err := f.Event(ctx, event)
	if err == nil {
		return true, nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return false, nil
	}
	return false, err
}
