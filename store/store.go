package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned by InsertUser when the email is already present.
	ErrDuplicateEmail = errors.New("email already present")
)

// UserRecord is a persisted user. Email is unique and compared exactly as stored.
type UserRecord struct {
	ID             int64
	Name           string
	Email          string
	PasswordDigest string
	CreatedAt      time.Time
}

// SessionRecord is an issued session. UserID is a back-reference only.
type SessionRecord struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CredentialStore is the store surface used by the pipeline.
//
// InsertUser must be atomic with respect to the email uniqueness check: two
// concurrent inserts of the same email never both succeed.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	InsertUser(ctx context.Context, user UserRecord) (UserRecord, error)
	InsertSession(ctx context.Context, sess SessionRecord) error
}

// DigestUpdater is implemented by stores that can replace a user's password
// digest. It is used for best-effort digest upgrades after login.
type DigestUpdater interface {
	UpdatePasswordDigest(ctx context.Context, userID int64, digest string) error
}

// Pinger is implemented by stores that can report backend availability.
type Pinger interface {
	Ping(ctx context.Context) error
}
