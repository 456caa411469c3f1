package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/flowAuth/flow"
	"github.com/MrEthical07/flowAuth/store"
)

// RegisterStages are the declared registration stages in execution order.
var RegisterStages = []flow.Stage{
	{Title: "HTTP Request", Text: "POST /register request sent"},
	{Title: "Validate Input", Text: "Checking all fields"},
	{Title: "Check User Exists", Text: "Email already in database?"},
	{Title: "Hash Password", Text: "Encrypting password"},
	{Title: "Insert Database", Text: "Creating user record"},
	{Title: "Send Confirmation", Text: "Email verification link"},
	{Title: "Response", Text: "Sending response"},
}

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Confirm  string
}

// RegisterResult is the flow-local registration outcome. It is returned on
// every path.
type RegisterResult struct {
	StatusCode  int
	Message     string
	User        *User
	Steps       []flow.Step
	FailedStage int
}

// RegisterMetrics carries metric IDs needed by the registration flow.
type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterInvalid   int
	RegisterDuplicate int
	StoreError        int
}

// RegisterEvents carries audit event names used by the registration flow.
type RegisterEvents struct {
	RegisterSuccess string
	RegisterFailure string
}

// RegisterErrors carries host-level sentinel errors used by the registration flow.
type RegisterErrors struct {
	EngineNotReady   error
	Validation       error
	AccountExists    error
	StoreUnavailable error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Hooks

	FindUserByEmail  func(context.Context, string) (store.UserRecord, error)
	HashPassword     func(string) (string, error)
	InsertUser       func(context.Context, store.UserRecord) (store.UserRecord, error)
	SendConfirmation func(context.Context, User) error

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister executes the seven registration stages strictly in order.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*RegisterResult, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.SendConfirmation == nil {
		deps.SendConfirmation = func(context.Context, User) error { return nil }
	}
	if deps.FindUserByEmail == nil ||
		deps.HashPassword == nil ||
		deps.InsertUser == nil {
		steps := NotReadyTrace(RegisterStages, deps.Hooks)
		return &RegisterResult{
			StatusCode:  http.StatusInternalServerError,
			Message:     msgServerError,
			Steps:       steps,
			FailedStage: len(steps),
		}, deps.Errors.EngineNotReady
	}

	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)
	r := newRun(ctx, RegisterStages, deps.Hooks)
	res := &RegisterResult{}

	finish := func(code int, msg, summary string, err error) (*RegisterResult, error) {
		r.respond(code, summary)
		res.StatusCode = code
		res.Message = msg
		res.Steps = r.rec.Steps()
		res.FailedStage = r.rec.FailedAt()
		if err != nil {
			deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", err, func() map[string]string {
				return map[string]string{
					"identifier": email,
					"stage":      strconv.Itoa(res.FailedStage),
				}
			})
		}
		return res, err
	}
	storeFailure := func(cause error) (*RegisterResult, error) {
		deps.MetricInc(deps.Metrics.StoreError)
		r.fail("✗ Database error")
		return finish(http.StatusInternalServerError, msgServerError, msgServerError, errors.Join(deps.Errors.StoreUnavailable, cause))
	}
	conflict := func() (*RegisterResult, error) {
		deps.MetricInc(deps.Metrics.RegisterDuplicate)
		r.fail("✗ Email taken")
		return finish(http.StatusConflict, msgEmailRegistered, msgEmailRegistered, deps.Errors.AccountExists)
	}

	// 1: receipt.
	r.succeed("", nil)

	// 2: validation, first violated rule only.
	if msg := validateRegister(name, email, req.Password, req.Confirm); msg != "" {
		deps.MetricInc(deps.Metrics.RegisterInvalid)
		r.fail("✗ " + msg)
		return finish(http.StatusBadRequest, msg, msg, fmt.Errorf("%w: %s", deps.Errors.Validation, msg))
	}
	r.succeed("✓ All fields valid", nil)

	// 3: existence check.
	if _, err := deps.FindUserByEmail(ctx, email); err == nil {
		return conflict()
	} else if !errors.Is(err, store.ErrNotFound) {
		return storeFailure(err)
	}
	r.succeed("✓ Email available", nil)

	// 4: hash.
	digest, err := deps.HashPassword(req.Password)
	if err != nil {
		r.fail("✗ Hash failed")
		return finish(http.StatusInternalServerError, msgServerError, msgServerError, fmt.Errorf("hash password: %w", err))
	}
	r.succeed("✓ Password hashed", nil)

	// 5: insert. A concurrent registration that won the race since stage 3
	// surfaces here as a duplicate and is classified like stage 3.
	created, err := deps.InsertUser(ctx, store.UserRecord{
		Name:           name,
		Email:          email,
		PasswordDigest: digest,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return conflict()
		}
		return storeFailure(err)
	}
	r.succeed("✓ User created", nil)

	// 6: confirmation dispatch is best-effort.
	user := User{ID: created.ID, Name: created.Name, Email: created.Email}
	if err := deps.SendConfirmation(ctx, user); err != nil {
		deps.Warn("confirmation dispatch failed", "user_id", user.ID, "error", err)
		r.succeed("✓ Confirmation deferred", nil)
	} else {
		r.succeed("✓ Email sent", nil)
	}

	// 7: response.
	res.User = &user
	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, strconv.FormatInt(user.ID, 10), "", nil, nil)
	return finish(http.StatusCreated, msgRegisterSuccess, "Registration successful", nil)
}
