package procureauth

import (
	"errors"

	"github.com/MrEthical07/procureauth/blacklist"
	"github.com/MrEthical07/procureauth/internal/audit"
	"github.com/MrEthical07/procureauth/internal/limiters"
	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/jwt"
	"github.com/MrEthical07/procureauth/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	mfaStore    MFAStore
	blacklist   TokenBlacklist
	auditSink   AuditSink
	log         *logger.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis shares the blacklist and the MFA limiter counters across
// instances. Without it both live in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(s CredentialStore) *Builder {
	b.credentials = s
	return b
}

func (b *Builder) WithMFAStore(s MFAStore) *Builder {
	b.mfaStore = s
	return b
}

// WithBlacklist overrides the blacklist otherwise derived from WithRedis.
func (b *Builder) WithBlacklist(bl TokenBlacklist) *Builder {
	b.blacklist = bl
	return b
}

// WithAuditSink sets the audit consumer. With auditing enabled and no sink
// set, events go to the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *logger.Logger) *Builder {
	b.log = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.mfaStore == nil {
		return nil, errors.New("mfa store required")
	}

	base := b.log
	if base == nil {
		base = logger.Nop()
	}
	log := base.WithComponent("auth")

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Access: jwt.Keys{
			Secret:     cloneBytes(cfg.JWT.AccessSecret),
			PrivateKey: cloneBytes(cfg.JWT.AccessKeyPair.PrivateKey),
			PublicKey:  cloneBytes(cfg.JWT.AccessKeyPair.PublicKey),
		},
		Refresh: jwt.Keys{
			Secret:     cloneBytes(cfg.JWT.RefreshSecret),
			PrivateKey: cloneBytes(cfg.JWT.RefreshKeyPair.PrivateKey),
			PublicKey:  cloneBytes(cfg.JWT.RefreshKeyPair.PublicKey),
		},
		MFA: jwt.Keys{
			Secret:     cloneBytes(cfg.JWT.MFASecret),
			PrivateKey: cloneBytes(cfg.JWT.MFAKeyPair.PrivateKey),
			PublicKey:  cloneBytes(cfg.JWT.MFAKeyPair.PublicKey),
		},
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		MFATTL:     cfg.JWT.MFATTL,
		Issuer:     cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewHasher(password.Config{
		Algorithm:  password.Algorithm(cfg.Password.Algorithm),
		BcryptCost: cfg.Password.BcryptCost,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		jwtManager:  jm,
		hasher:      hasher,
		totp:        newTOTPManager(cfg.TOTP),
		credentials: b.credentials,
		mfaStore:    b.mfaStore,
		metrics:     NewMetrics(cfg.Metrics),
		log:         log,
	}

	// -------- BLACKLIST --------
	switch {
	case b.blacklist != nil:
		engine.blacklist = b.blacklist
		engine.blacklistKind = "custom"
	case b.redis != nil:
		engine.blacklist = blacklist.NewRedis(b.redis, cfg.Blacklist.RedisPrefix)
		engine.blacklistKind = "redis"
	default:
		mem := blacklist.NewMemory(cfg.Blacklist.SweepInterval)
		engine.blacklist = mem
		engine.blacklistKind = "memory"
		engine.closers = append(engine.closers, mem.Close)
		log.Warn("no redis client configured, token blacklist is process-local")
	}

	engine.mfaLimiter = limiters.NewMFALimiter(b.redis, limiters.MFAConfig{
		MaxAttempts: cfg.MFA.MaxFailedAttempts,
		Cooldown:    cfg.MFA.Cooldown,
	})

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = audit.NewZerologSink(base.GetLogger())
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		RequestID:  logger.RequestIDFromContext,
	}, sink)

	engine.flows = engine.newFlowService()

	b.built = true

	return engine, nil
}
