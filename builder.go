package flowAuth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/flowAuth/internal/audit"
	"github.com/MrEthical07/flowAuth/jwt"
	"github.com/MrEthical07/flowAuth/password"
	"github.com/MrEthical07/flowAuth/store"
	"github.com/MrEthical07/flowAuth/store/redisstore"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	store  store.CredentialStore
	redis  redis.UniversalClient

	logger    *slog.Logger
	auditSink AuditSink
	pacer     Pacer
	notifier  Notifier
	observer  StepObserver
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is deep-copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the store consulted by both pipelines. It takes
// precedence over [Builder.WithRedis].
func (b *Builder) WithCredentialStore(s store.CredentialStore) *Builder {
	b.store = s
	return b
}

// WithRedis stores users and sessions in Redis under Session.RedisPrefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination. Without one, an enabled audit
// config logs events through the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPacer overrides the pacing derived from Config.Pipeline.
func (b *Builder) WithPacer(p Pacer) *Builder {
	b.pacer = p
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithStepObserver(obs StepObserver) *Builder {
	b.observer = obs
	return b
}

// WithMetricsEnabled toggles the in-process counters. Disabled counters are
// no-ops.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every dependency.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- CREDENTIAL STORE --------
	credentials := b.store
	if credentials == nil && b.redis != nil {
		credentials = redisstore.New(b.redis, cfg.Session.RedisPrefix)
	}
	if credentials == nil {
		return nil, errors.New("credential store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		store:    credentials,
		logger:   logger,
		observer: b.observer,
		now:      time.Now,
	}
	if b.clock != nil {
		engine.now = b.clock
	}
	if du, ok := credentials.(store.DigestUpdater); ok {
		engine.digests = du
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewHasher(password.Algorithm(cfg.Password.Algorithm), password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// -------- TOKEN ISSUER --------
	if cfg.Token.Format == TokenJWT {
		jm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Session.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
			PublicKey:     cloneBytes(cfg.Token.PublicKey),
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			KeyID:         cfg.Token.KeyID,
		})
		if err != nil {
			return nil, err
		}
		engine.jwtManager = jm
	}

	// -------- PACING / NOTIFICATION --------
	engine.pacer = b.pacer
	if engine.pacer == nil {
		engine.pacer = SleepPacer{Stage: cfg.Pipeline.StageDelay, AfterError: cfg.Pipeline.ErrorDelay}
	}
	engine.notifier = b.notifier
	if engine.notifier == nil {
		engine.notifier = LogNotifier{Logger: logger}
	}

	// -------- AUDIT / METRICS --------
	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = NewSlogSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

func (b *Builder) withClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}
