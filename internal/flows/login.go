package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/flowAuth/flow"
	"github.com/MrEthical07/flowAuth/store"
)

// LoginStages are the declared login stages in execution order.
var LoginStages = []flow.Stage{
	{Title: "HTTP Request", Text: "POST /login request sent"},
	{Title: "API Endpoint", Text: "Server receives request"},
	{Title: "Server Logic", Text: "Validating input data"},
	{Title: "Database Query", Text: "Searching user in database"},
	{Title: "Authentication", Text: "Comparing password hashes"},
	{Title: "Session/Token", Text: "Creating user session"},
	{Title: "Response", Text: "Sending response"},
}

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	Email    string
	Password string
}

// LoginResult is the flow-local login outcome. It is returned on every path.
type LoginResult struct {
	StatusCode  int
	Message     string
	User        *User
	Token       string
	SessionID   string
	ExpiresAt   time.Time
	Steps       []flow.Step
	FailedStage int
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	SessionCreated int
	StoreError     int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady        error
	Validation            error
	InvalidCredentials    error
	StoreUnavailable      error
	SessionCreationFailed error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hooks

	SessionTTL     time.Duration
	UpgradeOnLogin bool

	FindUserByEmail      func(context.Context, string) (store.UserRecord, error)
	VerifyPassword       func(password, digest string) (bool, error)
	PasswordNeedsUpgrade func(digest string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordDigest func(context.Context, int64, string) error

	NewSessionID  func() (string, error)
	IssueToken    func(user store.UserRecord, sessionID string, expiresAt time.Time) (string, error)
	InsertSession func(context.Context, store.SessionRecord) error

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin executes the seven login stages strictly in order.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*LoginResult, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.FindUserByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.NewSessionID == nil ||
		deps.IssueToken == nil ||
		deps.InsertSession == nil {
		steps := NotReadyTrace(LoginStages, deps.Hooks)
		return &LoginResult{
			StatusCode:  http.StatusInternalServerError,
			Message:     msgServerError,
			Steps:       steps,
			FailedStage: len(steps),
		}, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(req.Email)
	r := newRun(ctx, LoginStages, deps.Hooks)
	res := &LoginResult{}

	finish := func(code int, msg string, err error) (*LoginResult, error) {
		r.respond(code, msg)
		res.StatusCode = code
		res.Message = msg
		res.Steps = r.rec.Steps()
		res.FailedStage = r.rec.FailedAt()
		if err != nil {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", err, func() map[string]string {
				return map[string]string{
					"identifier": email,
					"stage":      strconv.Itoa(res.FailedStage),
				}
			})
		}
		return res, err
	}
	storeFailure := func(cause error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.StoreError)
		r.fail("✗ Database error")
		return finish(http.StatusInternalServerError, msgServerError, errors.Join(deps.Errors.StoreUnavailable, cause))
	}

	// 1-2: receipt and endpoint entry never fail.
	r.succeed("", nil)
	r.succeed("", map[string]string{"email": email, "password": maskedPassword})

	// 3: input validation.
	if msg := validateLogin(email, req.Password); msg != "" {
		r.fail("✗ Missing fields")
		return finish(http.StatusBadRequest, msg, fmt.Errorf("%w: %s", deps.Errors.Validation, msg))
	}
	r.succeed("✓ Input valid", nil)

	// 4: record lookup.
	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return storeFailure(err)
		}
		r.fail("✗ User not found")
		return finish(http.StatusUnauthorized, msgInvalidCredentials, deps.Errors.InvalidCredentials)
	}
	r.succeed("✓ User found", nil)

	// 5: credential verification.
	ok, err := deps.VerifyPassword(req.Password, user.PasswordDigest)
	if err != nil {
		deps.Warn("stored digest unreadable", "user_id", user.ID, "error", err)
		ok = false
	}
	if !ok {
		r.fail("✗ Wrong password")
		return finish(http.StatusUnauthorized, msgInvalidCredentials, deps.Errors.InvalidCredentials)
	}
	maybeUpgradeDigest(ctx, deps, user, req.Password)
	r.succeed("✓ Password matches", nil)

	// 6: session issuance.
	sessionID, err := deps.NewSessionID()
	if err != nil {
		r.fail("✗ Session failed")
		return finish(http.StatusInternalServerError, msgServerError, errors.Join(deps.Errors.SessionCreationFailed, err))
	}
	now := deps.Now().UTC()
	var expiresAt time.Time
	if deps.SessionTTL > 0 {
		expiresAt = now.Add(deps.SessionTTL)
	}
	token, err := deps.IssueToken(user, sessionID, expiresAt)
	if err != nil {
		r.fail("✗ Session failed")
		return finish(http.StatusInternalServerError, msgServerError, errors.Join(deps.Errors.SessionCreationFailed, err))
	}
	if err := deps.InsertSession(ctx, store.SessionRecord{
		ID:        sessionID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		deps.MetricInc(deps.Metrics.StoreError)
		r.fail("✗ Session failed")
		return finish(http.StatusInternalServerError, msgServerError,
			errors.Join(deps.Errors.SessionCreationFailed, deps.Errors.StoreUnavailable, err))
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	r.succeed("✓ JWT created", nil)

	// 7: response.
	res.User = &User{ID: user.ID, Name: user.Name, Email: user.Email}
	res.Token = token
	res.SessionID = sessionID
	res.ExpiresAt = expiresAt

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, strconv.FormatInt(user.ID, 10), sessionID, nil, nil)
	return finish(http.StatusOK, msgLoginSuccess, nil)
}

// maybeUpgradeDigest re-hashes a verified password when the stored digest is
// outdated. Failures are logged and never affect the login.
func maybeUpgradeDigest(ctx context.Context, deps LoginDeps, user store.UserRecord, password string) {
	if !deps.UpgradeOnLogin ||
		deps.PasswordNeedsUpgrade == nil ||
		deps.HashPassword == nil ||
		deps.UpdatePasswordDigest == nil {
		return
	}

	needs, err := deps.PasswordNeedsUpgrade(user.PasswordDigest)
	if err != nil || !needs {
		return
	}
	digest, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("password upgrade hash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := deps.UpdatePasswordDigest(ctx, user.ID, digest); err != nil {
		deps.Warn("password upgrade store failed", "user_id", user.ID, "error", err)
	}
}
