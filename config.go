package flowAuth

import (
	"errors"
	"time"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and treat the value as immutable once passed to [Builder.WithConfig].
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Password PasswordConfig
	Pipeline PipelineConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenFormat selects how bearer tokens are minted.
type TokenFormat string

const (
	// TokenOpaque issues random "jwt_<hex>" strings with no embedded claims.
	TokenOpaque TokenFormat = "opaque"
	// TokenJWT issues signed JWTs bound to the session id.
	TokenJWT TokenFormat = "jwt"
)

// TokenConfig controls bearer token issuance. Signing fields are only read
// when Format is [TokenJWT].
type TokenConfig struct {
	Format        TokenFormat
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls issued session records.
type SessionConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the digest algorithm for new passwords and the
// Argon2id cost parameters.
type PasswordConfig struct {
	Algorithm      string // "argon2id" (default) or "sha256"
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
PIPELINE CONFIG
====================================
*/

// PipelineConfig controls display pacing between recorded stages. Zero
// delays disable pacing.
type PipelineConfig struct {
	StageDelay time.Duration
	ErrorDelay time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration that validates as-is: opaque tokens,
// Argon2id digests, 24h sessions and no pacing.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Format:        TokenOpaque,
			SigningMethod: "hs256",
			Issuer:        "flowauth",
		},
		Session: SessionConfig{
			TTL:         24 * time.Hour,
			RedisPrefix: "fa",
		},
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Token
	switch c.Token.Format {
	case TokenOpaque:
	case TokenJWT:
		switch c.Token.SigningMethod {
		case "hs256":
			if len(c.Token.PrivateKey) < 32 {
				return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
			}
		case "ed25519":
			if len(c.Token.PrivateKey) == 0 {
				return errors.New("ed25519 requires PrivateKey")
			}
		default:
			return errors.New("unsupported JWT signing method")
		}
	default:
		return errors.New("Token Format must be 'opaque' or 'jwt'")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Password
	if c.Password.Algorithm != "argon2id" && c.Password.Algorithm != "sha256" {
		return errors.New("Password Algorithm must be 'argon2id' or 'sha256'")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Pipeline
	if c.Pipeline.StageDelay < 0 || c.Pipeline.ErrorDelay < 0 {
		return errors.New("Pipeline delays must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
