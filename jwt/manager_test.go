package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testConfig(now func() time.Time) Config {
	return Config{
		SigningMethod: MethodHS256,
		Access:        Keys{Secret: []byte("access-secret-access-secret-0001")},
		Refresh:       Keys{Secret: []byte("refresh-secret-refresh-secret-01")},
		MFA:           Keys{Secret: []byte("mfa-secret-mfa-secret-mfa-secret")},
		AccessTTL:     4 * time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
		MFATTL:        5 * time.Minute,
		Issuer:        "procure-erp",
		Now:           now,
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m, err := NewManager(testConfig(clock.Now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, clock
}

func TestAccessRoundTripAndExpiry(t *testing.T) {
	m, clock := newTestManager(t)

	tok, exp, err := m.CreateAccess("u-1", "alice", "ADMIN", "t-9")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if want := clock.now.Add(4 * time.Hour); !exp.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, exp)
	}

	clock.Advance(4*time.Hour - time.Second)
	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("expected token to verify before expiry: %v", err)
	}
	if claims.Subject != "u-1" || claims.LoginID != "alice" || claims.Role != "ADMIN" || claims.TenantID != "t-9" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Issuer != "procure-erp" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}

	clock.Advance(time.Second)
	if _, err := m.ParseAccess(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at exp, got %v", err)
	}
}

func TestTokensDoNotCrossKinds(t *testing.T) {
	m, _ := newTestManager(t)

	access, _, _ := m.CreateAccess("u-1", "alice", "USER", "")
	refresh, _, _ := m.CreateRefresh("u-1")
	mfa, _, _ := m.CreateMFA("u-1")

	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("access token must not verify as refresh: %v", err)
	}
	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("refresh token must not verify as access: %v", err)
	}
	if _, err := m.ParseAccess(mfa); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("mfa token must not verify as access: %v", err)
	}
	if _, err := m.ParseMFA(access); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("access token must not verify as mfa: %v", err)
	}

	claims, err := m.ParseMFA(mfa)
	if err != nil {
		t.Fatalf("parse mfa: %v", err)
	}
	if !claims.MFAVerified || claims.Subject != "u-1" {
		t.Fatalf("unexpected mfa claims: %+v", claims)
	}
}

func TestSameKindSecretButWrongTypeIsRejected(t *testing.T) {
	m, clock := newTestManager(t)

	forged := &AccessClaims{
		LoginID: "alice",
		Type:    KindRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "procure-erp",
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}
	tok, err := m.Sign(KindAccess, forged)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.ParseAccess(tok); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected typ mismatch to be rejected, got %v", err)
	}
}

func TestMFATokenExpiresAfterFiveMinutes(t *testing.T) {
	m, clock := newTestManager(t)

	tok, _, err := m.CreateMFA("u-1")
	if err != nil {
		t.Fatalf("create mfa: %v", err)
	}
	clock.Advance(5 * time.Minute)
	if _, err := m.ParseMFA(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired mfa token, got %v", err)
	}
}

func TestRejectsTamperedAndForeignTokens(t *testing.T) {
	m, clock := newTestManager(t)

	tok, _, _ := m.CreateAccess("u-1", "alice", "USER", "")
	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.ParseAccess(tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected tampered signature to fail, got %v", err)
	}

	foreign := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AccessClaims{
		Type: KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "other",
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	})
	signed, _ := foreign.SignedString([]byte("access-secret-access-secret-0001"))
	if _, err := m.ParseAccess(signed); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}

	noExp := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AccessClaims{
		Type:             KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{Subject: "u-1", Issuer: "procure-erp"},
	})
	signed, _ = noExp.SignedString([]byte("access-secret-access-secret-0001"))
	if _, err := m.ParseAccess(signed); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected token without exp to fail, got %v", err)
	}
}

func TestExpiredTokenWithBadSignatureIsInvalidNotExpired(t *testing.T) {
	m, clock := newTestManager(t)

	stale := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AccessClaims{
		Type: KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "procure-erp",
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(-time.Hour)),
		},
	})
	signed, _ := stale.SignedString([]byte("not-the-access-secret-at-all-000"))
	if _, err := m.ParseAccess(signed); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestNewManagerRejectsSharedSecrets(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Refresh.Secret = cfg.Access.Secret
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected shared access/refresh secret to be rejected")
	}

	cfg = testConfig(nil)
	cfg.MFA.Secret = nil
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected missing mfa secret to be rejected")
	}

	cfg = testConfig(nil)
	cfg.MFATTL = 0
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
}

func newEdKeys(t *testing.T) Keys {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return Keys{PrivateKey: priv, PublicKey: pub}
}

func TestEd25519PerKindKeys(t *testing.T) {
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		Access:        newEdKeys(t),
		Refresh:       newEdKeys(t),
		MFA:           newEdKeys(t),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		MFATTL:        time.Minute,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.CreateAccess("u-1", "alice", "USER", "")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(access); err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected cross-kind ed25519 verification to fail, got %v", err)
	}

	hs := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AccessClaims{Type: KindAccess})
	hsTok, _ := hs.SignedString([]byte("secret-secret-secret-secret"))
	if _, err := m.ParseAccess(hsTok); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestEachTokenIsUnique(t *testing.T) {
	m, _ := newTestManager(t)

	a, _, _ := m.CreateRefresh("u-1")
	b, _, _ := m.CreateRefresh("u-1")
	if a == b {
		t.Fatal("expected distinct tokens within the same second")
	}
}
