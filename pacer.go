package flowAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/flowAuth/flow"
)

// Pacer inserts display delays after each recorded non-terminal step.
// Pacing never changes the outcome of a run.
type Pacer interface {
	Pause(ctx context.Context, after flow.Status)
}

// NoPacer never waits.
type NoPacer struct{}

func (NoPacer) Pause(context.Context, flow.Status) {}

// SleepPacer waits Stage after a successful or padded step and AfterError
// after an error step. A cancelled ctx cuts the wait short.
type SleepPacer struct {
	Stage      time.Duration
	AfterError time.Duration
}

// DemoPacer returns the pacing used by the interactive demo: 800ms per
// stage and 500ms after an error.
func DemoPacer() SleepPacer {
	return SleepPacer{Stage: 800 * time.Millisecond, AfterError: 500 * time.Millisecond}
}

func (p SleepPacer) Pause(ctx context.Context, after flow.Status) {
	d := p.Stage
	if after == flow.StatusError {
		d = p.AfterError
	}
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
