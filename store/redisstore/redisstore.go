// Package redisstore implements [store.CredentialStore] on Redis.
//
// Users live in a hash per id with a separate email index key. Registration
// runs as one Lua script so the uniqueness check, id allocation and writes
// are atomic. Sessions are delegated to [session.Store].
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/flowAuth/session"
	"github.com/MrEthical07/flowAuth/store"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from Redis.
var ErrRedisUnavailable = session.ErrRedisUnavailable

const insertUserScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local id = redis.call("INCR", KEYS[2])
local userKey = ARGV[1] .. id
redis.call("SET", KEYS[1], tostring(id))
redis.call("HSET", userKey, "name", ARGV[2], "email", ARGV[3], "digest", ARGV[4], "created_at", ARGV[5])
return id
`

const updateDigestScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "digest", ARGV[1])
return 1
`

var (
	insertUserLua   = redis.NewScript(insertUserScript)
	updateDigestLua = redis.NewScript(updateDigestScript)
)

// Store is a Redis-backed credential store.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	sessions *session.Store
	now      func() time.Time
}

// New returns a store using prefix as the key namespace ("fa" when empty).
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "fa"
	}
	return &Store{
		redis:    rdb,
		prefix:   prefix,
		sessions: session.NewStore(rdb, prefix),
		now:      time.Now,
	}
}

// Sessions exposes the underlying session store.
func (s *Store) Sessions() *session.Store {
	return s.sessions
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

func (s *Store) userKeyPrefix() string {
	return s.prefix + ":user:"
}

func (s *Store) userKey(id int64) string {
	return s.userKeyPrefix() + strconv.FormatInt(id, 10)
}

func (s *Store) seqKey() string {
	return s.prefix + ":user:seq"
}

func (s *Store) FindByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.UserRecord{}, store.ErrNotFound
		}
		return store.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	fields, err := s.redis.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return store.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return store.UserRecord{}, store.ErrNotFound
	}

	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return store.UserRecord{
		ID:             id,
		Name:           fields["name"],
		Email:          fields["email"],
		PasswordDigest: fields["digest"],
		CreatedAt:      time.Unix(created, 0).UTC(),
	}, nil
}

func (s *Store) InsertUser(ctx context.Context, user store.UserRecord) (store.UserRecord, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	res, err := insertUserLua.Run(ctx, s.redis,
		[]string{s.emailKey(user.Email), s.seqKey()},
		s.userKeyPrefix(), user.Name, user.Email, user.PasswordDigest, user.CreatedAt.Unix(),
	).Int64()
	if err != nil {
		return store.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return store.UserRecord{}, store.ErrDuplicateEmail
	}

	user.ID = res
	user.CreatedAt = user.CreatedAt.Truncate(time.Second)
	return user, nil
}

// InsertSession stores sess with a TTL equal to its remaining lifetime.
func (s *Store) InsertSession(ctx context.Context, sess store.SessionRecord) error {
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return errors.New("session already expired")
		}
	}

	return s.sessions.Save(ctx, &session.Session{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt.Unix(),
		ExpiresAt: unixOrZero(sess.ExpiresAt),
	}, ttl)
}

// Session loads a previously inserted session.
func (s *Store) Session(ctx context.Context, id string) (store.SessionRecord, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return store.SessionRecord{}, store.ErrNotFound
		}
		return store.SessionRecord{}, err
	}

	rec := store.SessionRecord{
		ID:        sess.SessionID,
		UserID:    sess.UserID,
		CreatedAt: time.Unix(sess.CreatedAt, 0).UTC(),
	}
	if sess.ExpiresAt != 0 {
		rec.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return rec, nil
}

func (s *Store) UpdatePasswordDigest(ctx context.Context, userID int64, digest string) error {
	res, err := updateDigestLua.Run(ctx, s.redis, []string{s.userKey(userID)}, digest).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.sessions.Ping(ctx)
	return err
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
