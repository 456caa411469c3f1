package flow

import "time"

// Status is the outcome of one recorded stage.
type Status string

const (
	StatusActive   Status = "active"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusInactive Status = "inactive"
)

// Stage is a declared pipeline stage.
type Stage struct {
	Title string
	Text  string
}

// Step is one stage's recorded outcome.
type Step struct {
	Index     int               `json:"step"`
	Title     string            `json:"title,omitempty"`
	Text      string            `json:"text,omitempty"`
	Status    Status            `json:"status"`
	Result    string            `json:"result,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Observer receives every step as soon as it is finalized.
type Observer func(Step)

// Option configures a [Recorder].
type Option func(*Recorder)

// WithClock overrides the step timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithObserver registers a callback invoked synchronously for each finalized step.
func WithObserver(obs Observer) Option {
	return func(r *Recorder) {
		r.observer = obs
	}
}

// Recorder accumulates the steps of a single run. It is not safe for
// concurrent use; a run never records from more than one goroutine.
type Recorder struct {
	stages   []Stage
	steps    []Step
	failed   bool
	failedAt int
	now      func() time.Time
	observer Observer
}

// NewRecorder returns a recorder for the given declared stages. The last
// stage is the terminal response stage.
func NewRecorder(stages []Stage, opts ...Option) *Recorder {
	r := &Recorder{
		stages: stages,
		steps:  make([]Step, 0, len(stages)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next returns the index the next recorded step will receive.
func (r *Recorder) Next() int {
	return len(r.steps) + 1
}

// Failed reports whether any step has been recorded with [StatusError].
func (r *Recorder) Failed() bool {
	return r.failed
}

// FailedAt returns the index of the first error step, or 0.
func (r *Recorder) FailedAt() int {
	return r.failedAt
}

// Done reports whether the terminal step has been recorded.
func (r *Recorder) Done() bool {
	return len(r.steps) >= len(r.stages)
}

// Succeed records the next non-terminal stage as successful. After a failure
// the stage is recorded inactive instead.
func (r *Recorder) Succeed(result string, data map[string]string) {
	status := StatusSuccess
	if r.failed {
		status = StatusInactive
		result = ""
		data = nil
	}
	r.record(status, result, "", data)
}

// Fail records the next non-terminal stage as an error.
func (r *Recorder) Fail(result string) {
	r.record(StatusError, result, "", nil)
}

// Finish pads every remaining non-terminal stage as inactive and records the
// terminal stage with text as the response summary. A success status is
// downgraded to error when the run has already failed.
func (r *Recorder) Finish(status Status, text string) {
	if r.Done() {
		return
	}
	for len(r.steps) < len(r.stages)-1 {
		r.record(StatusInactive, "", "", nil)
	}
	if status == StatusSuccess && r.failed {
		status = StatusError
	}
	r.record(status, "", text, nil)
}

// Steps returns a copy of the recorded steps.
func (r *Recorder) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

func (r *Recorder) record(status Status, result, text string, data map[string]string) {
	if r.Done() {
		return
	}
	idx := len(r.steps)
	stage := r.stages[idx]
	if text == "" {
		text = stage.Text
	}

	step := Step{
		Index:     idx + 1,
		Title:     stage.Title,
		Text:      text,
		Status:    status,
		Result:    result,
		Data:      data,
		Timestamp: r.now().UTC(),
	}
	if status == StatusError && !r.failed {
		r.failed = true
		r.failedAt = step.Index
	}

	r.steps = append(r.steps, step)
	if r.observer != nil {
		r.observer(step)
	}
}
