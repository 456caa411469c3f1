// Package sqlstore implements [store.CredentialStore] on PostgreSQL (pgx) or
// MySQL/MariaDB. The schema is applied with goose from embedded migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/flowAuth/store"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store persists users and sessions in a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Open opens dsn with the driver for dialect and verifies connectivity.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	dsn, err := dialect.normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return New(db, dialect), nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(pg, my string) string {
	if s.dialect == MySQL {
		return my
	}
	return pg
}

func (s *Store) FindByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	query := s.q(
		`SELECT id, name, email, password_digest, created_at FROM users WHERE email = $1`,
		`SELECT id, name, email, password_digest, created_at FROM users WHERE email = ?`,
	)

	var (
		u       store.UserRecord
		created dbTime
	)
	err := s.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordDigest, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.UserRecord{}, store.ErrNotFound
		}
		return store.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	u.CreatedAt = time.Time(created).UTC()
	return u, nil
}

// MySQL returns DATETIME as text when the connection lacks parseTime.
var dbTimeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	time.RFC3339Nano,
}

// dbTime scans a timestamp delivered either as time.Time or as text.
type dbTime time.Time

func (t *dbTime) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case time.Time:
		*t = dbTime(v)
		return nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	for _, layout := range dbTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			*t = dbTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", text)
}

// InsertUser relies on the unique index on email for atomicity.
func (s *Store) InsertUser(ctx context.Context, user store.UserRecord) (store.UserRecord, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	var err error
	if s.dialect == MySQL {
		var res sql.Result
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO users (name, email, password_digest, created_at) VALUES (?, ?, ?, ?)`,
			user.Name, user.Email, user.PasswordDigest, user.CreatedAt)
		if err == nil {
			user.ID, err = res.LastInsertId()
		}
	} else {
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO users (name, email, password_digest, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
			user.Name, user.Email, user.PasswordDigest, user.CreatedAt).Scan(&user.ID)
	}
	if err != nil {
		if s.dialect.isDuplicateKey(err) {
			return store.UserRecord{}, store.ErrDuplicateEmail
		}
		return store.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (s *Store) InsertSession(ctx context.Context, sess store.SessionRecord) error {
	query := s.q(
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
	)

	var expires sql.NullTime
	if !sess.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: sess.ExpiresAt, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query, sess.ID, sess.UserID, sess.CreatedAt, expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) UpdatePasswordDigest(ctx context.Context, userID int64, digest string) error {
	query := s.q(
		`UPDATE users SET password_digest = $1 WHERE id = $2`,
		`UPDATE users SET password_digest = ? WHERE id = ?`,
	)

	res, err := s.db.ExecContext(ctx, query, digest, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
