package password

import (
	"errors"
	"strings"
	"sync"
)

// Algorithm names the scheme used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// ErrUnknownHashFormat is returned by Hasher.Check for hashes that match no
// supported scheme.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// Config selects the algorithm for new hashes and tunes both schemes.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// Hasher hashes with the configured algorithm and verifies any supported
// hash by its prefix, so bcrypt and argon2id credentials can coexist.
type Hasher struct {
	algorithm Algorithm
	bcrypt    *Bcrypt
	argon2    *Argon2

	dummyOnce sync.Once
	dummy     string
}

// NewHasher validates cfg and builds both schemes.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.Argon2 == (Argon2Config{}) {
		cfg.Argon2 = DefaultArgon2Config()
	}

	bc, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a2, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	switch cfg.Algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, errors.New("unsupported password algorithm")
	}

	return &Hasher{algorithm: cfg.Algorithm, bcrypt: bc, argon2: a2}, nil
}

// Hash hashes password with the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Check verifies password against encodedHash and reports why a hash could
// not be evaluated.
func (h *Hasher) Check(password, encodedHash string) (bool, error) {
	switch {
	case encodedHash == "":
		return false, ErrUnknownHashFormat
	case isBcryptHash(encodedHash):
		return h.bcrypt.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return h.argon2.Verify(password, encodedHash)
	default:
		return false, ErrUnknownHashFormat
	}
}

// Verify reports whether password matches encodedHash. It never panics and
// treats a missing or malformed hash as a mismatch.
func (h *Hasher) Verify(password, encodedHash string) bool {
	ok, err := h.Check(password, encodedHash)
	return err == nil && ok
}

// NeedsRehash reports whether encodedHash should be replaced on the next
// successful login, either because it uses the other algorithm or weaker
// parameters.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	switch {
	case isBcryptHash(encodedHash):
		if h.algorithm != AlgorithmBcrypt {
			return true
		}
		upgrade, err := h.bcrypt.NeedsUpgrade(encodedHash)
		return err == nil && upgrade
	case strings.HasPrefix(encodedHash, argon2Prefix):
		if h.algorithm != AlgorithmArgon2id {
			return true
		}
		upgrade, err := h.argon2.NeedsUpgrade(encodedHash)
		return err == nil && upgrade
	default:
		return false
	}
}

// Burn spends roughly one verification worth of CPU against a fixed hash.
// Callers use it on lookup misses so a missing account costs about as much
// as a wrong password.
func (h *Hasher) Burn(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.Hash("procureauth-timing-equalizer")
	})
	_ = h.Verify(password, h.dummy)
}
