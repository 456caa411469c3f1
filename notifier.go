package flowAuth

import (
	"context"
	"log/slog"
)

// Notifier dispatches the post-registration confirmation. Errors are
// logged and never fail the registration.
type Notifier interface {
	SendConfirmation(ctx context.Context, user User) error
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, user User) error

func (f NotifierFunc) SendConfirmation(ctx context.Context, user User) error {
	return f(ctx, user)
}

// LogNotifier records the confirmation in the log instead of sending mail.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendConfirmation(ctx context.Context, user User) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "confirmation queued", "user_id", user.ID, "email", user.Email)
	return nil
}
