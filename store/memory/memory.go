// Package memory provides a process-local [store.CredentialStore].
//
// It is intended for tests, demos, and single-instance deployments. All
// operations are serialized by one mutex, so the email uniqueness check and
// the insert happen atomically.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/flowAuth/store"
)

// Store is an in-memory credential store. The zero value is not usable; call [New].
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]store.UserRecord
	byEmail  map[string]int64
	sessions map[string]store.SessionRecord
	now      func() time.Time
}

// New returns an empty store. User ids start at 1.
func New() *Store {
	return &Store{
		users:    make(map[int64]store.UserRecord),
		byEmail:  make(map[string]int64),
		sessions: make(map[string]store.SessionRecord),
		now:      time.Now,
	}
}

// FindByEmail returns the user with the exact email or [store.ErrNotFound].
func (s *Store) FindByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return store.UserRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return store.UserRecord{}, store.ErrNotFound
	}
	return s.users[id], nil
}

// InsertUser assigns the next id and stores the user, or returns
// [store.ErrDuplicateEmail] if the email is taken.
func (s *Store) InsertUser(ctx context.Context, user store.UserRecord) (store.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return store.UserRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return store.UserRecord{}, store.ErrDuplicateEmail
	}

	s.nextID++
	user.ID = s.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return user, nil
}

// InsertSession appends a session record. Session ids are expected to be unique.
func (s *Store) InsertSession(ctx context.Context, sess store.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess
	return nil
}

// UpdatePasswordDigest replaces the stored digest for userID.
func (s *Store) UpdatePasswordDigest(ctx context.Context, userID int64, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordDigest = digest
	s.users[userID] = user
	return nil
}

// Session returns a previously inserted session.
func (s *Store) Session(id string) (store.SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}
