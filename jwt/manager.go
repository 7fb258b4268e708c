package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm shared by all token kinds.
type SigningMethod string

const (
	// MethodHS256 signs every token kind with its own HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs every token kind with its own Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Kind identifies a token namespace. Each kind is signed with distinct key
// material and carries its kind in the "typ" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindMFA     Kind = "mfa"
)

var (
	// ErrInvalidSignature is returned for any token that fails signature,
	// structure, issuer or kind checks.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")
)

// Keys holds the key material for one token kind. HS256 uses Secret;
// Ed25519 uses PrivateKey for signing and PublicKey for verification.
type Keys struct {
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
}

// Config defines the codec. Access, Refresh and MFA must carry distinct key
// material so a leak of one secret cannot mint tokens of another kind.
type Config struct {
	SigningMethod SigningMethod
	Access        Keys
	Refresh       Keys
	MFA           Keys
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MFATTL        time.Duration
	Issuer        string
	Now           func() time.Time
}

// AccessClaims is the short-lived claim set presented on protected requests.
type AccessClaims struct {
	LoginID  string `json:"login_id"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	Type     Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims only names the subject; everything else is re-resolved from
// the credential store on refresh.
type RefreshClaims struct {
	Type Kind `json:"typ"`
	jwt.RegisteredClaims
}

// MFAClaims asserts that the subject completed a second factor recently.
type MFAClaims struct {
	MFAVerified bool `json:"mfa_verified"`
	Type        Kind `json:"typ"`
	jwt.RegisteredClaims
}

type typedClaims interface {
	jwt.Claims
	kind() Kind
}

func (c *AccessClaims) kind() Kind  { return c.Type }
func (c *RefreshClaims) kind() Kind { return c.Type }
func (c *MFAClaims) kind() Kind     { return c.Type }

// Manager signs and verifies the three token kinds.
//
// Manager is immutable after NewManager and safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
	now    func() time.Time
}

// NewManager validates cfg and returns a ready codec.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.MFATTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case MethodHS256, "":
		cfg.SigningMethod = MethodHS256
		method = jwt.SigningMethodHS256
		for kind, keys := range cfg.keysByKind() {
			if len(keys.Secret) == 0 {
				return nil, fmt.Errorf("hs256 requires a %s secret", kind)
			}
		}
		if string(cfg.Access.Secret) == string(cfg.Refresh.Secret) ||
			string(cfg.Access.Secret) == string(cfg.MFA.Secret) ||
			string(cfg.Refresh.Secret) == string(cfg.MFA.Secret) {
			return nil, errors.New("access, refresh and mfa secrets must differ")
		}
	case MethodEd25519:
		method = jwt.SigningMethodEdDSA
		seen := make(map[string]Kind, 3)
		for kind, keys := range cfg.keysByKind() {
			if _, err := parseEdPrivateKey(keys.PrivateKey); err != nil {
				return nil, fmt.Errorf("%s: %w", kind, err)
			}
			pub, err := parseEdPublicKey(keys.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", kind, err)
			}
			if other, ok := seen[string(pub)]; ok {
				return nil, fmt.Errorf("%s and %s share a public key", other, kind)
			}
			seen[string(pub)] = kind
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, method: method, now: now}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// MFATTL reports the configured MFA-verified token lifetime.
func (m *Manager) MFATTL() time.Duration { return m.config.MFATTL }

// CreateAccess issues an access token for the principal and returns it with
// its expiry.
func (m *Manager) CreateAccess(subject, loginID, role, tenantID string) (string, time.Time, error) {
	claims := &AccessClaims{
		LoginID:          loginID,
		Role:             role,
		TenantID:         tenantID,
		Type:             KindAccess,
		RegisteredClaims: m.registered(subject, m.config.AccessTTL),
	}
	tok, err := m.Sign(KindAccess, claims)
	return tok, claims.ExpiresAt.Time, err
}

// CreateRefresh issues a refresh token for subject.
func (m *Manager) CreateRefresh(subject string) (string, time.Time, error) {
	claims := &RefreshClaims{
		Type:             KindRefresh,
		RegisteredClaims: m.registered(subject, m.config.RefreshTTL),
	}
	tok, err := m.Sign(KindRefresh, claims)
	return tok, claims.ExpiresAt.Time, err
}

// CreateMFA issues a short-lived MFA-verified assertion for subject.
func (m *Manager) CreateMFA(subject string) (string, time.Time, error) {
	claims := &MFAClaims{
		MFAVerified:      true,
		Type:             KindMFA,
		RegisteredClaims: m.registered(subject, m.config.MFATTL),
	}
	tok, err := m.Sign(KindMFA, claims)
	return tok, claims.ExpiresAt.Time, err
}

// Sign signs arbitrary claims with the key material of kind.
func (m *Manager) Sign(kind Kind, claims jwt.Claims) (string, error) {
	key, err := m.signKey(kind)
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(m.method, claims).SignedString(key)
}

// ParseAccess verifies an access token.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(KindAccess, tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(KindRefresh, tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseMFA verifies an MFA-verified token. The mfa_verified claim must be
// true.
func (m *Manager) ParseMFA(tokenStr string) (*MFAClaims, error) {
	claims := &MFAClaims{}
	if err := m.parse(KindMFA, tokenStr, claims); err != nil {
		return nil, err
	}
	if !claims.MFAVerified {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func (m *Manager) parse(kind Kind, tokenStr string, claims typedClaims) error {
	if tokenStr == "" {
		return ErrInvalidSignature
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey(kind)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid || claims.kind() != kind {
		return ErrInvalidSignature
	}
	return nil
}

func (m *Manager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (cfg Config) keysByKind() map[Kind]Keys {
	return map[Kind]Keys{
		KindAccess:  cfg.Access,
		KindRefresh: cfg.Refresh,
		KindMFA:     cfg.MFA,
	}
}

func (m *Manager) keys(kind Kind) (Keys, error) {
	switch kind {
	case KindAccess:
		return m.config.Access, nil
	case KindRefresh:
		return m.config.Refresh, nil
	case KindMFA:
		return m.config.MFA, nil
	default:
		return Keys{}, fmt.Errorf("unknown token kind %q", kind)
	}
}

func (m *Manager) signKey(kind Kind) (interface{}, error) {
	keys, err := m.keys(kind)
	if err != nil {
		return nil, err
	}
	if m.config.SigningMethod == MethodHS256 {
		return keys.Secret, nil
	}
	return parseEdPrivateKey(keys.PrivateKey)
}

func (m *Manager) verifyKey(kind Kind) (interface{}, error) {
	keys, err := m.keys(kind)
	if err != nil {
		return nil, err
	}
	if m.config.SigningMethod == MethodHS256 {
		return keys.Secret, nil
	}
	return parseEdPublicKey(keys.PublicKey)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
