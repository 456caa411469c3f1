package session

// Session is one authenticated login. Times are unix seconds.
type Session struct {
	SessionID string
	UserID    int64
	CreatedAt int64
	ExpiresAt int64
}
