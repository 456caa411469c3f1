package password

import "errors"

// Algorithm selects the digest produced by [Hasher.Hash].
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmSHA256   Algorithm = "sha256"
)

// Hasher produces digests with one algorithm and verifies digests of either
// supported format.
type Hasher struct {
	algorithm Algorithm
	argon     *argonHasher
}

// NewHasher returns a hasher for algo. argonCfg is validated even when algo
// is sha256 because Argon2id is still used for upgrades.
func NewHasher(algo Algorithm, argonCfg Config) (*Hasher, error) {
	switch algo {
	case AlgorithmArgon2id, AlgorithmSHA256:
	default:
		return nil, errors.New("unsupported password algorithm")
	}

	argon, err := newArgonHasher(argonCfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{algorithm: algo, argon: argon}, nil
}

// Algorithm returns the algorithm used for new digests.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash returns a digest of password using the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmSHA256 {
		return LegacyDigest(password), nil
	}
	return h.argon.hash(password)
}

// Verify checks password against a digest of either format.
func (h *Hasher) Verify(password, digest string) (bool, error) {
	if IsLegacyDigest(digest) {
		return VerifyLegacy(password, digest), nil
	}
	if len(digest) > 0 && digest[0] == '$' {
		return h.argon.verify(password, digest)
	}
	return false, ErrMalformedDigest
}

// NeedsUpgrade reports whether digest should be replaced by an Argon2id
// digest with the current parameters. It is always false in sha256 mode.
func (h *Hasher) NeedsUpgrade(digest string) (bool, error) {
	if h.algorithm == AlgorithmSHA256 {
		return false, nil
	}
	if IsLegacyDigest(digest) {
		return true, nil
	}
	return h.argon.weakerThanCurrent(digest)
}
