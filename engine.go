package flowAuth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/flowAuth/flow"
	"github.com/MrEthical07/flowAuth/internal"
	"github.com/MrEthical07/flowAuth/internal/audit"
	"github.com/MrEthical07/flowAuth/internal/flows"
	"github.com/MrEthical07/flowAuth/jwt"
	"github.com/MrEthical07/flowAuth/password"
	"github.com/MrEthical07/flowAuth/store"
)

// Engine runs the login and registration pipelines. It is safe for
// concurrent use; each call owns its own step trace.
type Engine struct {
	config     Config
	store      store.CredentialStore
	digests    store.DigestUpdater
	hasher     *password.Hasher
	jwtManager *jwt.Manager
	pacer      Pacer
	notifier   Notifier
	observer   StepObserver
	logger     *slog.Logger
	audit      *audit.Dispatcher
	metrics    *Metrics
	now        func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]float64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the credential store when it supports health checks.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	p, ok := e.store.(store.Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Login authenticates req and, on success, issues a session and bearer
// token. The returned result is never nil and carries the full trace even
// when err is non-nil. Unknown emails and wrong passwords both return
// [ErrInvalidCredentials] with identical messages.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		steps := flows.NotReadyTrace(flows.LoginStages, flows.Hooks{})
		return &LoginResult{
			Message:     SafeMessage(ErrEngineNotReady),
			Steps:       steps,
			StatusCode:  http.StatusInternalServerError,
			FailedStage: len(steps),
		}, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID := internal.NewRunID()
	start := time.Now()
	res, err := flows.RunLogin(ctx, flows.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	}, e.loginDeps(ctx, runID))
	elapsed := time.Since(start)

	e.metrics.Observe(MetricLoginLatency, elapsed)
	e.logRun(ctx, OperationLogin, runID, res.StatusCode, res.FailedStage, elapsed, err)

	out := &LoginResult{
		Success:     err == nil,
		Message:     res.Message,
		Token:       res.Token,
		SessionID:   res.SessionID,
		Steps:       res.Steps,
		StatusCode:  res.StatusCode,
		ExpiresAt:   res.ExpiresAt,
		FailedStage: res.FailedStage,
		RunID:       runID,
	}
	if res.User != nil {
		out.User = &User{ID: res.User.ID, Name: res.User.Name, Email: res.User.Email}
	}
	return out, err
}

// Register creates an account. Validation reports only the first violated
// rule. Concurrent registrations of one email never both succeed; the loser
// gets [ErrAccountExists].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil {
		steps := flows.NotReadyTrace(flows.RegisterStages, flows.Hooks{})
		return &RegisterResult{
			Message:     SafeMessage(ErrEngineNotReady),
			Steps:       steps,
			StatusCode:  http.StatusInternalServerError,
			FailedStage: len(steps),
		}, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID := internal.NewRunID()
	start := time.Now()
	res, err := flows.RunRegister(ctx, flows.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Confirm:  req.Confirm,
	}, e.registerDeps(ctx, runID))
	elapsed := time.Since(start)

	e.metrics.Observe(MetricRegisterLatency, elapsed)
	e.logRun(ctx, OperationRegister, runID, res.StatusCode, res.FailedStage, elapsed, err)

	out := &RegisterResult{
		Success:     err == nil,
		Message:     res.Message,
		Steps:       res.Steps,
		StatusCode:  res.StatusCode,
		FailedStage: res.FailedStage,
		RunID:       runID,
	}
	if res.User != nil {
		out.User = &User{ID: res.User.ID, Name: res.User.Name, Email: res.User.Email}
	}
	return out, err
}

func (e *Engine) hooks(ctx context.Context, op Operation, runID string) flows.Hooks {
	return flows.Hooks{
		Now:   e.now,
		Pause: e.pacer.Pause,
		Observe: func(s flow.Step) {
			if e.observer != nil {
				e.observer(ctx, op, s)
			}
		},
		MetricInc: func(id int) {
			e.metrics.Inc(MetricID(id))
		},
		EmitAudit: func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string) {
			e.emitAudit(ctx, runID, event, success, userID, sessionID, err, meta)
		},
		Warn: func(msg string, args ...any) {
			e.logger.WarnContext(ctx, msg, append(args, "run_id", runID, "operation", string(op))...)
		},
	}
}

func (e *Engine) loginDeps(ctx context.Context, runID string) flows.LoginDeps {
	deps := flows.LoginDeps{
		Hooks:          e.hooks(ctx, OperationLogin, runID),
		SessionTTL:     e.config.Session.TTL,
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,

		FindUserByEmail:      e.store.FindByEmail,
		VerifyPassword:       e.hasher.Verify,
		PasswordNeedsUpgrade: e.hasher.NeedsUpgrade,
		HashPassword:         e.hasher.Hash,

		NewSessionID:  internal.NewSessionID,
		IssueToken:    e.issueToken,
		InsertSession: e.store.InsertSession,

		Metrics: flows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			SessionCreated: int(MetricSessionCreated),
			StoreError:     int(MetricStoreError),
		},
		Events: flows.LoginEvents{
			LoginSuccess: auditEventLoginSuccess,
			LoginFailure: auditEventLoginFailure,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:        ErrEngineNotReady,
			Validation:            ErrValidation,
			InvalidCredentials:    ErrInvalidCredentials,
			StoreUnavailable:      ErrStoreUnavailable,
			SessionCreationFailed: ErrSessionCreationFailed,
		},
	}
	if e.digests != nil {
		deps.UpdatePasswordDigest = func(ctx context.Context, userID int64, digest string) error {
			if err := e.digests.UpdatePasswordDigest(ctx, userID, digest); err != nil {
				return err
			}
			e.metrics.Inc(MetricPasswordUpgraded)
			return nil
		}
	}
	return deps
}

func (e *Engine) registerDeps(ctx context.Context, runID string) flows.RegisterDeps {
	return flows.RegisterDeps{
		Hooks: e.hooks(ctx, OperationRegister, runID),

		FindUserByEmail: e.store.FindByEmail,
		HashPassword:    e.hasher.Hash,
		InsertUser:      e.store.InsertUser,
		SendConfirmation: func(ctx context.Context, u flows.User) error {
			return e.notifier.SendConfirmation(ctx, User{ID: u.ID, Name: u.Name, Email: u.Email})
		},

		Metrics: flows.RegisterMetrics{
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterInvalid:   int(MetricRegisterInvalid),
			RegisterDuplicate: int(MetricRegisterDuplicate),
			StoreError:        int(MetricStoreError),
		},
		Events: flows.RegisterEvents{
			RegisterSuccess: auditEventRegisterSuccess,
			RegisterFailure: auditEventRegisterFailure,
		},
		Errors: flows.RegisterErrors{
			EngineNotReady:   ErrEngineNotReady,
			Validation:       ErrValidation,
			AccountExists:    ErrAccountExists,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}
}

// issueToken mints an opaque bearer token, or a signed JWT bound to the
// session when Token.Format is jwt.
func (e *Engine) issueToken(user store.UserRecord, sessionID string, _ time.Time) (string, error) {
	if e.jwtManager == nil {
		return internal.NewBearerToken()
	}
	tokenID, err := internal.NewTokenID()
	if err != nil {
		return "", err
	}
	return e.jwtManager.Issue(jwt.Subject{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: sessionID,
		TokenID:   tokenID,
	})
}

// ParseToken verifies a JWT issued by this engine. It fails for opaque tokens.
func (e *Engine) ParseToken(token string) (*jwt.SessionClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	return e.jwtManager.Parse(token)
}

func (e *Engine) logRun(ctx context.Context, op Operation, runID string, status, stage int, elapsed time.Duration, err error) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("run_id", runID),
		slog.String("operation", string(op)),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	}
	if stage > 0 {
		attrs = append(attrs, slog.Int("stage", stage))
	}
	if level == slog.LevelError && err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	e.logger.LogAttrs(ctx, level, "pipeline run", attrs...)
}
