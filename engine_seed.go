package flowAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/flowAuth/internal/flows"
	"github.com/MrEthical07/flowAuth/store"
)

// EnsureUser creates an account directly in the credential store when the
// email is free, for bootstrapping demo or admin users. It records no trace
// and applies no pacing. created is false when the email already exists; the
// existing account is left untouched.
func (e *Engine) EnsureUser(ctx context.Context, name, email, password string) (created bool, err error) {
	if e == nil || e.store == nil || e.hasher == nil {
		return false, ErrEngineNotReady
	}

	email = flows.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return false, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}

	if _, err := e.store.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, errors.Join(ErrStoreUnavailable, err)
	}

	digest, err := e.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	_, err = e.store.InsertUser(ctx, store.UserRecord{
		Name:           name,
		Email:          email,
		PasswordDigest: digest,
		CreatedAt:      e.now(),
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrDuplicateEmail):
		return false, nil
	default:
		return false, errors.Join(ErrStoreUnavailable, err)
	}
}
