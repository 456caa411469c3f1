package flows

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/flowAuth/flow"
)

// Hooks are the ambient dependencies shared by every flow. Nil fields are
// replaced with no-ops.
type Hooks struct {
	Now       func() time.Time
	Pause     func(context.Context, flow.Status)
	Observe   func(flow.Step)
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, sessionID string, err error, meta func() map[string]string)
	Warn      func(string, ...any)
}

func (h Hooks) withDefaults() Hooks {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Pause == nil {
		h.Pause = func(context.Context, flow.Status) {}
	}
	if h.Observe == nil {
		h.Observe = func(flow.Step) {}
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...any) {}
	}
	return h
}

// User is the public projection of a stored user.
type User struct {
	ID    int64
	Name  string
	Email string
}

// run drives one recorder and applies pacing after every non-terminal step.
type run struct {
	ctx   context.Context
	rec   *flow.Recorder
	hooks Hooks
}

func newRun(ctx context.Context, stages []flow.Stage, hooks Hooks) *run {
	rec := flow.NewRecorder(stages,
		flow.WithClock(hooks.Now),
		flow.WithObserver(flow.Observer(hooks.Observe)),
	)
	return &run{ctx: ctx, rec: rec, hooks: hooks}
}

func (r *run) succeed(result string, data map[string]string) {
	r.rec.Succeed(result, data)
	r.hooks.Pause(r.ctx, flow.StatusSuccess)
}

func (r *run) fail(result string) {
	r.rec.Fail(result)
	r.hooks.Pause(r.ctx, flow.StatusError)
}

// respond records the terminal step as "<code> <reason> - <summary>".
func (r *run) respond(code int, summary string) {
	status := flow.StatusSuccess
	if code >= http.StatusBadRequest {
		status = flow.StatusError
	}
	r.rec.Finish(status, fmt.Sprintf("%d %s - %s", code, http.StatusText(code), summary))
}

// NotReadyTrace is the trace of a run that could not start: every stage
// inactive and a 500 terminal step. FailedStage for such a run is the
// terminal stage.
func NotReadyTrace(stages []flow.Stage, hooks Hooks) []flow.Step {
	r := newRun(context.Background(), stages, hooks.withDefaults())
	r.respond(http.StatusInternalServerError, msgServerError)
	return r.rec.Steps()
}
