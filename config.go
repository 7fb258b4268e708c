package procureauth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the library-level configuration consumed by Builder. Secrets
// are loaded once at startup; rotating them invalidates every outstanding
// token signed with the old value.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	TOTP      TOTPConfig
	MFA       MFAConfig
	Blacklist BlacklistConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds per-kind key material. With hs256 each *Secret must be at
// least 32 bytes and all three must differ. With ed25519 the KeyPair fields
// are used instead.
type JWTConfig struct {
	SigningMethod string `validate:"oneof=hs256 ed25519"`
	AccessSecret  []byte
	RefreshSecret []byte
	MFASecret     []byte

	AccessKeyPair  KeyPair
	RefreshKeyPair KeyPair
	MFAKeyPair     KeyPair

	AccessTTL  time.Duration `validate:"gt=0s"`
	RefreshTTL time.Duration `validate:"gt=0s"`
	MFATTL     time.Duration `validate:"gt=0s,lte=15m"`
	Issuer     string
}

// KeyPair is an Ed25519 signing pair for one token kind.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the scheme for newly created hashes. Verification
// always accepts both bcrypt and argon2id hashes.
type PasswordConfig struct {
	Algorithm  string `validate:"oneof=bcrypt argon2id"`
	BcryptCost int    `validate:"gte=4,lte=31"`
}

/*
====================================
TOTP / MFA CONFIG
====================================
*/

// TOTPConfig controls enrollment material. Period, digits and skew are
// fixed at 30s, 6 and ±1 step.
type TOTPConfig struct {
	Issuer            string `validate:"required"`
	RecoveryCodeCount int    `validate:"gte=1,lte=64"`
}

// MFAConfig bounds consecutive failed second-factor attempts per account.
type MFAConfig struct {
	MaxFailedAttempts int           `validate:"gte=1"`
	Cooldown          time.Duration `validate:"gt=0s"`
}

/*
====================================
BLACKLIST / AUDIT / METRICS
====================================
*/

// BlacklistConfig tunes the built-in blacklist backends. It is ignored
// when Builder.WithBlacklist supplies one.
type BlacklistConfig struct {
	RedisPrefix   string
	SweepInterval time.Duration `validate:"gte=0s"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int `validate:"gte=0"`
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults without any key material.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     4 * time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
			MFATTL:        5 * time.Minute,
		},
		Password: PasswordConfig{
			Algorithm:  "bcrypt",
			BcryptCost: 10,
		},
		TOTP: TOTPConfig{
			Issuer:            "ProcureERP",
			RecoveryCodeCount: 16,
		},
		MFA: MFAConfig{
			MaxFailedAttempts: 5,
			Cooldown:          15 * time.Minute,
		},
		Blacklist: BlacklistConfig{
			RedisPrefix:   "bl:",
			SweepInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.JWT.MFASecret = cloneBytes(cfg.JWT.MFASecret)
	for _, kp := range []*KeyPair{&out.JWT.AccessKeyPair, &out.JWT.RefreshKeyPair, &out.JWT.MFAKeyPair} {
		kp.PrivateKey = cloneBytes(kp.PrivateKey)
		kp.PublicKey = cloneBytes(kp.PublicKey)
	}
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

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

var (
	configValidator     *validator.Validate
	configValidatorOnce sync.Once
)

func getConfigValidator() *validator.Validate {
	configValidatorOnce.Do(func() {
		configValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return configValidator
}

// Validate checks field ranges through struct tags, then the cross-field
// key rules.
func (c *Config) Validate() error {
	if err := getConfigValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	switch c.JWT.SigningMethod {
	case "hs256":
		secrets := map[string][]byte{
			"access":  c.JWT.AccessSecret,
			"refresh": c.JWT.RefreshSecret,
			"mfa":     c.JWT.MFASecret,
		}
		for name, s := range secrets {
			if len(s) < MinSecretLength {
				return fmt.Errorf("config: %s secret must be at least %d bytes", name, MinSecretLength)
			}
		}
		a, r, m := string(c.JWT.AccessSecret), string(c.JWT.RefreshSecret), string(c.JWT.MFASecret)
		if a == r || a == m || r == m {
			return errors.New("config: access, refresh and mfa secrets must differ")
		}
	case "ed25519":
		for name, kp := range map[string]KeyPair{
			"access":  c.JWT.AccessKeyPair,
			"refresh": c.JWT.RefreshKeyPair,
			"mfa":     c.JWT.MFAKeyPair,
		} {
			if len(kp.PrivateKey) == 0 || len(kp.PublicKey) == 0 {
				return fmt.Errorf("config: %s key pair is incomplete", name)
			}
		}
	}

	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("config: refresh TTL must not be shorter than access TTL")
	}
	return nil
}
