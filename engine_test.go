package flowAuth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/flowAuth/flow"
	"github.com/MrEthical07/flowAuth/password"
	"github.com/MrEthical07/flowAuth/store"
	"github.com/MrEthical07/flowAuth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, st store.CredentialStore, configure func(*Builder)) *Engine {
	t.Helper()

	b := New().
		WithConfig(testConfig()).
		WithCredentialStore(st).
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if configure != nil {
		configure(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func assertTrace(t *testing.T, steps []flow.Step, want string) {
	t.Helper()
	if len(steps) != 7 {
		t.Fatalf("expected 7 steps, got %d", len(steps))
	}
	got := make([]string, len(steps))
	for i, s := range steps {
		if s.Index != i+1 {
			t.Fatalf("step %d has index %d", i, s.Index)
		}
		got[i] = string(s.Status)
	}
	if strings.Join(got, ",") != want {
		t.Fatalf("statuses = %s, want %s", strings.Join(got, ","), want)
	}
}

const (
	allSuccess    = "success,success,success,success,success,success,success"
	loginAt3      = "success,success,error,inactive,inactive,inactive,error"
	loginAt4      = "success,success,success,error,inactive,inactive,error"
	loginAt5      = "success,success,success,success,error,inactive,error"
	loginAt6      = "success,success,success,success,success,error,error"
	registerAt2   = "success,error,inactive,inactive,inactive,inactive,error"
	registerAt3   = "success,success,error,inactive,inactive,inactive,error"
	registerAt5   = "success,success,success,success,error,inactive,error"
	demoEmail     = "user@example.com"
	demoPassword  = "password123"
	demoName      = "Demo User"
	annEmail      = "ann@example.com"
	annPassword   = "secret1"
	wrongPassword = "not-the-password"
)

func seedUser(t *testing.T, e *Engine) *User {
	t.Helper()
	res, err := e.Register(context.Background(), RegisterRequest{
		Name:     demoName,
		Email:    demoEmail,
		Password: demoPassword,
		Confirm:  demoPassword,
	})
	if err != nil {
		t.Fatalf("seed register failed: %v", err)
	}
	return res.User
}

// countingStore records calls so tests can assert the store was not touched.
type countingStore struct {
	store.CredentialStore
	finds atomic.Int32
}

func (s *countingStore) FindByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	s.finds.Add(1)
	return s.CredentialStore.FindByEmail(ctx, email)
}

type failingStore struct {
	*memory.Store
	findErr    error
	insertErr  error
	sessionErr error
}

func (s *failingStore) FindByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	if s.findErr != nil {
		return store.UserRecord{}, s.findErr
	}
	return s.Store.FindByEmail(ctx, email)
}

func (s *failingStore) InsertUser(ctx context.Context, u store.UserRecord) (store.UserRecord, error) {
	if s.insertErr != nil {
		return store.UserRecord{}, s.insertErr
	}
	return s.Store.InsertUser(ctx, u)
}

func (s *failingStore) InsertSession(ctx context.Context, sess store.SessionRecord) error {
	if s.sessionErr != nil {
		return s.sessionErr
	}
	return s.Store.InsertSession(ctx, sess)
}

func TestLoginMissingFieldsShortCircuits(t *testing.T) {
	st := &countingStore{CredentialStore: memory.New()}
	e := newTestEngine(t, st, nil)

	for _, req := range []LoginRequest{
		{Email: "", Password: demoPassword},
		{Email: demoEmail, Password: ""},
		{Email: "   ", Password: demoPassword},
	} {
		res, err := e.Login(context.Background(), req)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if res.Success || res.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected unauthenticated 400, got %+v", res)
		}
		if res.Message != "Email and password are required" {
			t.Fatalf("unexpected message %q", res.Message)
		}
		assertTrace(t, res.Steps, loginAt3)
		if res.FailedStage != 3 {
			t.Fatalf("expected failed stage 3, got %d", res.FailedStage)
		}
	}
	if st.finds.Load() != 0 {
		t.Fatalf("store must not be queried for invalid input, got %d lookups", st.finds.Load())
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	seedUser(t, e)

	unknown, errUnknown := e.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: demoPassword})
	wrong, errWrong := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: wrongPassword})

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrong)
	}
	if unknown.StatusCode != http.StatusUnauthorized || wrong.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d / %d", unknown.StatusCode, wrong.StatusCode)
	}
	if unknown.Message != wrong.Message {
		t.Fatalf("messages differ: %q vs %q", unknown.Message, wrong.Message)
	}
	if unknown.Steps[6].Text != wrong.Steps[6].Text {
		t.Fatalf("terminal texts differ: %q vs %q", unknown.Steps[6].Text, wrong.Steps[6].Text)
	}
	assertTrace(t, unknown.Steps, loginAt4)
	assertTrace(t, wrong.Steps, loginAt5)
	if unknown.Token != "" || unknown.SessionID != "" || unknown.User != nil {
		t.Fatal("failed login must not carry credentials")
	}
}

func TestLoginPasswordIsCaseSensitive(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	seedUser(t, e)

	res, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: strings.ToUpper(demoPassword)})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	assertTrace(t, res.Steps, loginAt5)
}

func TestLoginEmailIsCaseSensitive(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	seedUser(t, e)

	_, err := e.Login(context.Background(), LoginRequest{Email: strings.ToUpper(demoEmail), Password: demoPassword})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := e.Login(context.Background(), LoginRequest{Email: "  " + demoEmail + " ", Password: demoPassword}); err != nil {
		t.Fatalf("surrounding whitespace should be ignored: %v", err)
	}
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	st := memory.New()
	e := newTestEngine(t, st, nil)

	reg, err := e.Register(context.Background(), RegisterRequest{
		Name:     "Ann",
		Email:    annEmail,
		Password: annPassword,
		Confirm:  annPassword,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if reg.StatusCode != http.StatusCreated || !reg.Success {
		t.Fatalf("expected 201 success, got %+v", reg)
	}
	if reg.User == nil || reg.User.ID <= 0 || reg.User.Name != "Ann" || reg.User.Email != annEmail {
		t.Fatalf("unexpected user %+v", reg.User)
	}
	assertTrace(t, reg.Steps, allSuccess)
	if got := reg.Steps[6].Text; got != "201 Created - Registration successful" {
		t.Fatalf("unexpected terminal text %q", got)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		res, err := e.Login(context.Background(), LoginRequest{Email: annEmail, Password: annPassword})
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if res.StatusCode != http.StatusOK || !res.Success {
			t.Fatalf("expected 200 success, got %+v", res)
		}
		if !strings.HasPrefix(res.Token, "jwt_") || !strings.HasPrefix(res.SessionID, "session_") {
			t.Fatalf("unexpected token shapes %q / %q", res.Token, res.SessionID)
		}
		if seen[res.Token] || seen[res.SessionID] {
			t.Fatal("token and session id must be fresh on every login")
		}
		seen[res.Token], seen[res.SessionID] = true, true

		if res.User == nil || res.User.ID != reg.User.ID {
			t.Fatalf("login returned wrong user %+v", res.User)
		}
		assertTrace(t, res.Steps, allSuccess)

		sess, ok := st.Session(res.SessionID)
		if !ok || sess.UserID != reg.User.ID {
			t.Fatalf("session not persisted for user: %+v", sess)
		}
		if !sess.ExpiresAt.Equal(sess.CreatedAt.Add(24 * time.Hour)) {
			t.Fatalf("expected 24h expiry, got %v -> %v", sess.CreatedAt, sess.ExpiresAt)
		}
	}
}

func TestLoginStepDataMasksPassword(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	seedUser(t, e)

	res, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	data := res.Steps[1].Data
	if data["email"] != demoEmail {
		t.Fatalf("expected email in endpoint step data, got %v", data)
	}
	for _, s := range res.Steps {
		for _, v := range s.Data {
			if strings.Contains(v, demoPassword) {
				t.Fatalf("raw password leaked into step %d", s.Index)
			}
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	seedUser(t, e)

	res, err := e.Register(context.Background(), RegisterRequest{
		Name:     "Someone Else",
		Email:    demoEmail,
		Password: "different-pass",
		Confirm:  "different-pass",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if res.StatusCode != http.StatusConflict || res.Message != "Email already registered" {
		t.Fatalf("expected 409, got %+v", res)
	}
	assertTrace(t, res.Steps, registerAt3)
}

func TestRegisterValidationPriority(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)

	tests := []struct {
		name string
		req  RegisterRequest
		msg  string
	}{
		{"missing name beats mismatch", RegisterRequest{Email: annEmail, Password: "abcdef", Confirm: "ghijkl"}, "All fields required"},
		{"missing confirm", RegisterRequest{Name: "Ann", Email: annEmail, Password: "abcdef"}, "All fields required"},
		{"mismatch beats length", RegisterRequest{Name: "Ann", Email: annEmail, Password: "abc", Confirm: "abd"}, "Passwords do not match"},
		{"short even when confirmed", RegisterRequest{Name: "Ann", Email: annEmail, Password: "abc12", Confirm: "abc12"}, "Password must be 6+ characters"},
		{"length beats format", RegisterRequest{Name: "Ann", Email: "ann", Password: "abc", Confirm: "abc"}, "Password must be 6+ characters"},
		{"format", RegisterRequest{Name: "Ann", Email: "ann.example.com", Password: "abcdef", Confirm: "abcdef"}, "Invalid email format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Register(context.Background(), tc.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if res.Message != tc.msg {
				t.Fatalf("message = %q, want %q", res.Message, tc.msg)
			}
			if SafeMessage(err) != tc.msg {
				t.Fatalf("SafeMessage = %q, want %q", SafeMessage(err), tc.msg)
			}
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.StatusCode)
			}
			assertTrace(t, res.Steps, registerAt2)
		})
	}

	if got := e.MetricsSnapshot().Counters[MetricRegisterInvalid]; got != uint64(len(tests)) {
		t.Fatalf("expected %d invalid registrations counted, got %d", len(tests), got)
	}
}

func raceRegistrations(t *testing.T, e *Engine, n int) (successes, conflicts int) {
	t.Helper()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		start = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			pw := "password-" + strings.Repeat("x", i%4)
			_, err := e.Register(context.Background(), RegisterRequest{
				Name:     "Racer",
				Email:    "race@example.com",
				Password: pw,
				Confirm:  pw,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAccountExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	return successes, conflicts
}

func TestRegisterConcurrentSameEmailMemory(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)

	successes, conflicts := raceRegistrations(t, e, 8)
	if successes != 1 || conflicts != 7 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", successes, conflicts)
	}
}

func TestRegisterConcurrentSameEmailRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(e.Close)

	successes, conflicts := raceRegistrations(t, e, 8)
	if successes != 1 || conflicts != 7 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", successes, conflicts)
	}

	res, err := e.Login(context.Background(), LoginRequest{Email: "race@example.com", Password: "password-"})
	if err != nil && !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unexpected login error: %v", err)
	}
	if err == nil && !mr.Exists("fa:sess:"+res.SessionID) {
		t.Fatal("expected session key in redis")
	}
	if err := e.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestRegisterInsertRaceMapsToConflict(t *testing.T) {
	st := &failingStore{Store: memory.New(), insertErr: store.ErrDuplicateEmail}
	e := newTestEngine(t, st, nil)

	res, err := e.Register(context.Background(), RegisterRequest{
		Name: "Ann", Email: annEmail, Password: annPassword, Confirm: annPassword,
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.StatusCode)
	}
	assertTrace(t, res.Steps, registerAt5)
}

func TestStoreFailuresReturn500WithTrace(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("login lookup", func(t *testing.T) {
		e := newTestEngine(t, &failingStore{Store: memory.New(), findErr: boom}, nil)
		res, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword})
		if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, boom) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
		if StatusCode(err) != http.StatusInternalServerError || res.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", res.StatusCode)
		}
		if SafeMessage(err) != "Server error" || strings.Contains(res.Message, "refused") {
			t.Fatalf("store cause leaked into message %q", res.Message)
		}
		assertTrace(t, res.Steps, loginAt4)
	})

	t.Run("login session write", func(t *testing.T) {
		st := &failingStore{Store: memory.New()}
		e := newTestEngine(t, st, nil)
		seedUser(t, e)
		st.sessionErr = boom

		res, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword})
		if !errors.Is(err, ErrSessionCreationFailed) || !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected session creation failure, got %v", err)
		}
		if res.Token != "" || res.SessionID != "" {
			t.Fatal("failed session write must not return credentials")
		}
		assertTrace(t, res.Steps, loginAt6)
	})

	t.Run("register insert", func(t *testing.T) {
		e := newTestEngine(t, &failingStore{Store: memory.New(), insertErr: boom}, nil)
		res, err := e.Register(context.Background(), RegisterRequest{
			Name: "Ann", Email: annEmail, Password: annPassword, Confirm: annPassword,
		})
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		assertTrace(t, res.Steps, registerAt5)
		if got := e.MetricsSnapshot().Counters[MetricStoreError]; got != 1 {
			t.Fatalf("expected one store error counted, got %d", got)
		}
	})
}

func TestLegacyDigestUpgradedOnLogin(t *testing.T) {
	st := memory.New()
	if _, err := st.InsertUser(context.Background(), store.UserRecord{
		Name:           demoName,
		Email:          demoEmail,
		PasswordDigest: password.LegacyDigest(demoPassword),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	e := newTestEngine(t, st, nil)

	if _, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword}); err != nil {
		t.Fatalf("login with legacy digest failed: %v", err)
	}

	u, err := st.FindByEmail(context.Background(), demoEmail)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if password.IsLegacyDigest(u.PasswordDigest) || !strings.HasPrefix(u.PasswordDigest, "$argon2id$") {
		t.Fatalf("expected digest upgraded to argon2id, got %q", u.PasswordDigest)
	}
	if got := e.MetricsSnapshot().Counters[MetricPasswordUpgraded]; got != 1 {
		t.Fatalf("expected one upgrade counted, got %d", got)
	}

	if _, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword}); err != nil {
		t.Fatalf("login after upgrade failed: %v", err)
	}
}

func TestSHA256AlgorithmStoresLegacyDigest(t *testing.T) {
	st := memory.New()
	cfg := testConfig()
	cfg.Password.Algorithm = "sha256"
	e := newTestEngine(t, st, func(b *Builder) { b.WithConfig(cfg) })

	seedUser(t, e)
	u, err := st.FindByEmail(context.Background(), demoEmail)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if u.PasswordDigest != "ef92b778bafe771e89245b89ecbc08a44a4e166c06659911881f383d4473e94f" {
		t.Fatalf("unexpected digest %q", u.PasswordDigest)
	}
}

func TestJWTTokenFormatBindsSession(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Format = TokenJWT
	cfg.Token.PrivateKey = []byte(strings.Repeat("s", 32))
	e := newTestEngine(t, memory.New(), func(b *Builder) { b.WithConfig(cfg) })
	user := seedUser(t, e)

	res, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := e.ParseToken(res.Token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.SID != res.SessionID {
		t.Fatalf("token sid %q does not match session %q", claims.SID, res.SessionID)
	}
	if claims.UID != "1" || user.ID != 1 {
		t.Fatalf("unexpected uid %q", claims.UID)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
}

func TestStepObserverSeesEveryStepInOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		ops []Operation
		idx []int
	)
	e := newTestEngine(t, memory.New(), func(b *Builder) {
		b.WithStepObserver(func(_ context.Context, op Operation, s flow.Step) {
			mu.Lock()
			defer mu.Unlock()
			ops = append(ops, op)
			idx = append(idx, s.Index)
		})
	})

	if _, err := e.Login(context.Background(), LoginRequest{}); err == nil {
		t.Fatal("expected validation error")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(idx) != 7 {
		t.Fatalf("expected 7 observed steps, got %d", len(idx))
	}
	for i, v := range idx {
		if v != i+1 || ops[i] != OperationLogin {
			t.Fatalf("observation %d: op=%s index=%d", i, ops[i], v)
		}
	}
}

type countingPacer struct {
	success atomic.Int32
	errors  atomic.Int32
}

func (p *countingPacer) Pause(_ context.Context, after flow.Status) {
	if after == flow.StatusError {
		p.errors.Add(1)
		return
	}
	p.success.Add(1)
}

func TestPacerCalledAfterEachNonTerminalStep(t *testing.T) {
	pacer := &countingPacer{}
	e := newTestEngine(t, memory.New(), func(b *Builder) { b.WithPacer(pacer) })
	seedUser(t, e)
	pacer.success.Store(0)

	if _, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if pacer.success.Load() != 6 || pacer.errors.Load() != 0 {
		t.Fatalf("expected 6 stage pauses, got %d/%d", pacer.success.Load(), pacer.errors.Load())
	}

	pacer.success.Store(0)
	if _, err := e.Login(context.Background(), LoginRequest{Email: demoEmail}); err == nil {
		t.Fatal("expected validation error")
	}
	if pacer.success.Load() != 2 || pacer.errors.Load() != 1 {
		t.Fatalf("expected 2 stage pauses and 1 error pause, got %d/%d", pacer.success.Load(), pacer.errors.Load())
	}
}

func TestSleepPacerCancelledContextStillCompletes(t *testing.T) {
	e := newTestEngine(t, memory.New(), func(b *Builder) {
		b.WithPacer(SleepPacer{Stage: time.Hour, AfterError: time.Hour})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, _ := e.Login(ctx, LoginRequest{})
		if len(res.Steps) != 7 {
			t.Errorf("expected full trace, got %d steps", len(res.Steps))
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pacer blocked a cancelled run")
	}
}

func TestNotifierFailureDoesNotFailRegistration(t *testing.T) {
	var called atomic.Bool
	e := newTestEngine(t, memory.New(), func(b *Builder) {
		b.WithNotifier(NotifierFunc(func(_ context.Context, u User) error {
			called.Store(u.Email == annEmail)
			return errors.New("smtp down")
		}))
	})

	res, err := e.Register(context.Background(), RegisterRequest{
		Name: "Ann", Email: annEmail, Password: annPassword, Confirm: annPassword,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !called.Load() {
		t.Fatal("notifier was not called with the created user")
	}
	assertTrace(t, res.Steps, allSuccess)
	if res.Steps[5].Result != "✓ Confirmation deferred" {
		t.Fatalf("unexpected confirmation result %q", res.Steps[5].Result)
	}
}

func TestAuditEventsCarryRunIDAndNoSecrets(t *testing.T) {
	sink := NewChannelSink(16)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	e := newTestEngine(t, memory.New(), func(b *Builder) {
		b.WithConfig(cfg).WithAuditSink(sink)
	})

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"), "test-agent")
	if _, err := e.Register(ctx, RegisterRequest{Name: demoName, Email: demoEmail, Password: demoPassword, Confirm: demoPassword}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	login, err := e.Login(ctx, LoginRequest{Email: demoEmail, Password: demoPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := e.Login(ctx, LoginRequest{Email: demoEmail, Password: wrongPassword}); err == nil {
		t.Fatal("expected failure")
	}
	e.Close()

	var events []AuditEvent
	for len(events) < 3 {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 3 audit events, got %d", len(events))
		}
	}

	if events[0].EventType != auditEventRegisterSuccess || events[1].EventType != auditEventLoginSuccess {
		t.Fatalf("unexpected event order: %s, %s", events[0].EventType, events[1].EventType)
	}
	if events[1].RunID != login.RunID || events[1].SessionID != login.SessionID {
		t.Fatalf("login event not correlated: %+v", events[1])
	}
	if events[2].Success || events[2].Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event %+v", events[2])
	}
	for _, ev := range events {
		if ev.IP != "203.0.113.7" || ev.UserAgent != "test-agent" {
			t.Fatalf("context fields missing: %+v", ev)
		}
		blob, _ := json.Marshal(ev)
		for _, secret := range []string{demoPassword, wrongPassword, login.Token} {
			if strings.Contains(string(blob), secret) {
				t.Fatalf("secret leaked into audit event: %s", blob)
			}
		}
	}
}

func TestRunLogLineHasCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(t, memory.New(), func(b *Builder) {
		b.WithLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	})

	res, _ := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: wrongPassword})
	out := buf.String()
	for _, want := range []string{`"msg":"pipeline run"`, `"run_id":"` + res.RunID + `"`, `"operation":"login"`, `"status":401`, `"stage":4`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, wrongPassword) {
		t.Fatal("password leaked into logs")
	}
}

func TestResultJSONShape(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	seedUser(t, e)

	res, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	blob, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(blob, &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"success", "message", "user", "token", "sessionId", "flowSteps"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing key %q in %s", key, blob)
		}
	}
	if _, ok := body["StatusCode"]; ok {
		t.Fatal("internal fields must not be serialized")
	}
}

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without a credential store")
	}

	b := New().WithConfig(testConfig()).WithCredentialStore(memory.New())
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	res, err := e.Login(context.Background(), LoginRequest{Email: demoEmail, Password: demoPassword})
	if !errors.Is(err, ErrEngineNotReady) || res == nil {
		t.Fatalf("expected ErrEngineNotReady with result, got %v", err)
	}
	if len(res.Steps) != 7 || res.Steps[6].Status != flow.StatusError || res.FailedStage != 7 {
		t.Fatalf("expected padded error trace, got %+v", res.Steps)
	}
	for _, s := range res.Steps[:6] {
		if s.Status != flow.StatusInactive {
			t.Fatalf("step %d: expected inactive, got %s", s.Index, s.Status)
		}
	}

	reg, err := e.Register(context.Background(), RegisterRequest{})
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if len(reg.Steps) != 7 || reg.Steps[6].Text != "500 Internal Server Error - Server error" {
		t.Fatalf("expected padded error trace, got %+v", reg.Steps)
	}

	body, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(body, []byte(`"flowSteps":[{`)) {
		t.Fatalf("expected non-empty flowSteps, got %s", body)
	}
}
