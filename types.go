package flowAuth

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/flowAuth/flow"
	internalaudit "github.com/MrEthical07/flowAuth/internal/audit"
)

// Operation names a pipeline. It is passed to step observers and logged with
// every run.
type Operation string

const (
	OperationLogin    Operation = "login"
	OperationRegister Operation = "register"
)

// User is the public projection of a stored user. The password digest is
// never exposed.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginRequest is the input to [Engine.Login].
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the input to [Engine.Register].
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

// LoginResult is returned by [Engine.Login] on every path, including errors.
// Steps always holds the complete seven-step trace.
type LoginResult struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	User      *User       `json:"user,omitempty"`
	Token     string      `json:"token,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	// Steps is sent as "flowSteps" for compatibility with existing clients.
	Steps     []flow.Step `json:"flowSteps"`

	StatusCode  int       `json:"-"`
	ExpiresAt   time.Time `json:"-"`
	FailedStage int       `json:"-"`
	RunID       string    `json:"-"`
}

// RegisterResult is returned by [Engine.Register] on every path.
type RegisterResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    *User       `json:"user,omitempty"`
	// Steps is sent as "flowSteps", matching LoginResult.
	Steps   []flow.Step `json:"flowSteps"`

	StatusCode  int    `json:"-"`
	FailedStage int    `json:"-"`
	RunID       string `json:"-"`
}

// StepObserver receives every finalized step of every run, in order, on the
// goroutine executing the run.
type StepObserver func(ctx context.Context, op Operation, step flow.Step)

type (
	// AuditEvent is one audited login or registration outcome.
	AuditEvent = internalaudit.Event
	// AuditSink receives audit events from the engine's dispatcher goroutine.
	AuditSink      = internalaudit.Sink
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	SlogSink       = internalaudit.SlogSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink logs audit events through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
