package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedDigest is returned when a stored digest cannot be decoded.
var ErrMalformedDigest = errors.New("malformed password digest")

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Floors applied to new digests and to digests read back from storage.
var minConfig = Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

func (c Config) validate() error {
	switch {
	case c.Memory < minConfig.Memory:
		return fmt.Errorf("password memory must be >= %d KiB", minConfig.Memory)
	case c.Time < minConfig.Time:
		return fmt.Errorf("password time must be >= %d", minConfig.Time)
	case c.Parallelism < minConfig.Parallelism:
		return fmt.Errorf("password parallelism must be >= %d", minConfig.Parallelism)
	case c.SaltLength < minConfig.SaltLength:
		return fmt.Errorf("password salt length must be >= %d", minConfig.SaltLength)
	case c.KeyLength < minConfig.KeyLength:
		return fmt.Errorf("password key length must be >= %d", minConfig.KeyLength)
	}
	return nil
}

// argonDigest is the decoded form of "$argon2id$v=19$m=..,t=..,p=..$salt$key".
type argonDigest struct {
	cost Config
	salt []byte
	key  []byte
}

var b64 = base64.StdEncoding

func (d argonDigest) String() string {
	return fmt.Sprintf("$%s$v=%d$%s$%s$%s",
		AlgorithmArgon2id, argon2.Version, d.params(), b64.EncodeToString(d.salt), b64.EncodeToString(d.key))
}

func (d argonDigest) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", d.cost.Memory, d.cost.Time, d.cost.Parallelism)
}

func decodeArgon(s string) (argonDigest, error) {
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != string(AlgorithmArgon2id) {
		return argonDigest{}, ErrMalformedDigest
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return argonDigest{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedDigest, fields[2])
	}

	var d argonDigest
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &d.cost.Memory, &d.cost.Time, &d.cost.Parallelism); err != nil ||
		d.params() != fields[3] {
		return argonDigest{}, fmt.Errorf("%w: bad parameters %q", ErrMalformedDigest, fields[3])
	}

	var err error
	if d.salt, err = b64.DecodeString(fields[4]); err != nil {
		return argonDigest{}, fmt.Errorf("%w: salt encoding", ErrMalformedDigest)
	}
	if d.key, err = b64.DecodeString(fields[5]); err != nil || len(d.key) == 0 {
		return argonDigest{}, fmt.Errorf("%w: key encoding", ErrMalformedDigest)
	}
	d.cost.SaltLength = uint32(len(d.salt))
	d.cost.KeyLength = uint32(len(d.key))
	if err := d.cost.validate(); err != nil {
		return argonDigest{}, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
	}
	return d, nil
}

func (d argonDigest) derive(plaintext string) []byte {
	return argon2.IDKey([]byte(plaintext), d.salt, d.cost.Time, d.cost.Memory, d.cost.Parallelism, d.cost.KeyLength)
}

// argonHasher issues Argon2id digests at a fixed cost. Safe for concurrent use.
type argonHasher struct {
	cost Config
}

func newArgonHasher(cfg Config) (*argonHasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &argonHasher{cost: cfg}, nil
}

func (a *argonHasher) hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password must not be empty")
	}
	d := argonDigest{cost: a.cost, salt: make([]byte, a.cost.SaltLength)}
	if _, err := rand.Read(d.salt); err != nil {
		return "", err
	}
	d.key = d.derive(plaintext)
	return d.String(), nil
}

// verify uses the cost stored in the digest, not the hasher's own.
func (a *argonHasher) verify(plaintext, digest string) (bool, error) {
	d, err := decodeArgon(digest)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(d.derive(plaintext), d.key) == 1, nil
}

func (a *argonHasher) weakerThanCurrent(digest string) (bool, error) {
	d, err := decodeArgon(digest)
	if err != nil {
		return false, err
	}
	return d.cost.Memory < a.cost.Memory ||
		d.cost.Time < a.cost.Time ||
		d.cost.Parallelism < a.cost.Parallelism ||
		d.cost.KeyLength != a.cost.KeyLength, nil
}
