package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// Floors applied both to configuration and to hashes read back from the
// credential store. An imported hash below them is refused, not verified.
var argon2Floor = Argon2Config{
	Memory:      8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   16,
}

var errMalformedPHC = errors.New("malformed argon2id hash")

// Argon2Config tunes the argon2id hasher. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the parameters used when argon2id is selected
// as the hashing algorithm.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < argon2Floor.Memory:
		return fmt.Errorf("argon2 memory must be >= %d KiB", argon2Floor.Memory)
	case c.Time < argon2Floor.Time:
		return errors.New("argon2 time must be >= 1")
	case c.Parallelism < argon2Floor.Parallelism:
		return errors.New("argon2 parallelism must be >= 1")
	case c.SaltLength < argon2Floor.SaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", argon2Floor.SaltLength)
	case c.KeyLength < argon2Floor.KeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", argon2Floor.KeyLength)
	}
	return nil
}

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
}

// String encodes p with unpadded base64 as the PHC format prescribes.
func (p phc) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key))
}

// weakerThan reports whether p costs less than cfg or derives a key of a
// different length.
func (p phc) weakerThan(cfg Argon2Config) bool {
	return p.memory < cfg.Memory ||
		p.time < cfg.Time ||
		p.threads < cfg.Parallelism ||
		uint32(len(p.key)) != cfg.KeyLength
}

// decodePHC parses an argon2id hash. Salt and key may be padded or
// unpadded base64 since imported accounts come from both kinds of tooling.
func decodePHC(encoded string) (phc, error) {
	fields := strings.Split(strings.TrimPrefix(encoded, argon2Prefix), "$")
	if !strings.HasPrefix(encoded, argon2Prefix) || len(fields) != 4 {
		return phc{}, errMalformedPHC
	}
	if fields[0] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, fmt.Errorf("unsupported argon2 version %q", fields[0])
	}

	var p phc
	params := strings.Split(fields[1], ",")
	if len(params) != 3 {
		return phc{}, errMalformedPHC
	}
	for i, name := range []string{"m", "t", "p"} {
		raw, ok := strings.CutPrefix(params[i], name+"=")
		if !ok {
			return phc{}, errMalformedPHC
		}
		bits := 32
		if name == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return phc{}, fmt.Errorf("argon2 parameter %s: %w", name, err)
		}
		switch name {
		case "m":
			p.memory = uint32(v)
		case "t":
			p.time = uint32(v)
		case "p":
			p.threads = uint8(v)
		}
	}
	if p.memory < argon2Floor.Memory || p.time < argon2Floor.Time || p.threads < argon2Floor.Parallelism {
		return phc{}, errors.New("argon2 parameters below the accepted floor")
	}

	var err error
	if p.salt, err = decodeB64(fields[2]); err != nil || len(p.salt) < int(argon2Floor.SaltLength) {
		return phc{}, errors.New("invalid argon2 salt")
	}
	if p.key, err = decodeB64(fields[3]); err != nil || len(p.key) == 0 {
		return phc{}, errors.New("invalid argon2 key")
	}
	return p, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Argon2 hashes into PHC strings and verifies argon2id hashes carried over
// from account imports.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg against the accepted floor.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded argon2id hash with a fresh random salt.
// Password bytes are used as provided, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	p := phc{
		memory:  a.config.Memory,
		time:    a.config.Time,
		threads: a.config.Parallelism,
		salt:    make([]byte, a.config.SaltLength),
		key:     make([]byte, a.config.KeyLength),
	}
	if _, err := io.ReadFull(rand.Reader, p.salt); err != nil {
		return "", err
	}
	p.key = p.derive(password)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash using the parameters
// embedded in the hash. A malformed hash is an error, never a match.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return p.weakerThan(a.config), nil
}
