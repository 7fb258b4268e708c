package procureauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoginClaimsMatchRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "alice", "correct-horse", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if res.RefreshToken != "" {
		t.Fatal("refresh token must only be issued with rememberMe")
	}
	if res.MFARequired {
		t.Fatal("mfa not enrolled, must not be required")
	}

	claims, err := f.engine.jwtManager.ParseAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.Subject != "u-alice" || claims.Role != RoleAdmin || claims.LoginID != "alice" || claims.TenantID != "t-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if res.Principal.ProfileID != "p-1" {
		t.Fatalf("expected profile id on principal, got %+v", res.Principal)
	}
	if _, ok := f.store.lastSeen["u-alice"]; !ok {
		t.Fatal("expected last login to be recorded")
	}
	if got := f.engine.metrics.Value(MetricLoginSuccess); got != 1 {
		t.Fatalf("expected one login success, got %d", got)
	}
}

func TestLoginRememberMeIssuesRefresh(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Login(context.Background(), "alice", "correct-horse", true)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.RefreshToken == "" {
		t.Fatal("expected refresh token with rememberMe")
	}
	if !res.RefreshExpiresAt.After(res.AccessExpiresAt) {
		t.Fatal("refresh token must outlive the access token")
	}
	if _, err := f.engine.jwtManager.ParseAccess(res.RefreshToken); err == nil {
		t.Fatal("refresh token must not verify as an access token")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		loginID  string
		password string
	}{
		{name: "wrong password", loginID: "alice", password: "wrong"},
		{name: "unknown login", loginID: "nobody", password: "correct-horse"},
		{name: "disabled account", loginID: "bob", password: "correct-horse"},
		{name: "empty password", loginID: "alice", password: ""},
		{name: "empty login", loginID: "", password: "correct-horse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.engine.Login(ctx, tc.loginID, tc.password, true)
			if res != nil {
				t.Fatalf("expected nil result, got %+v", res)
			}
			if err != ErrInvalidCredentials {
				t.Fatalf("expected ErrInvalidCredentials exactly, got %v", err)
			}
		})
	}
	if got := f.engine.metrics.Value(MetricLoginFailure); got != uint64(len(cases)) {
		t.Fatalf("expected %d login failures, got %d", len(cases), got)
	}
}

func TestValidateCredentialsReturnsPrincipalWithoutHash(t *testing.T) {
	f := newFixture(t, nil)

	p, err := f.engine.ValidateCredentials(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("ValidateCredentials failed: %v", err)
	}
	if p.ID != "u-alice" || p.Role != RoleAdmin {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestLoginFlagsMFAWhenEnrolled(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.store.EnableMFA(ctx, "u-alice", "JBSWY3DPEHPK3PXP", nil, time.Now()); err != nil {
		t.Fatalf("EnableMFA failed: %v", err)
	}

	res, err := f.engine.Login(ctx, "alice", "correct-horse", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.MFARequired || res.AccessToken == "" {
		t.Fatalf("expected access token with MFA flag, got %+v", res)
	}
	if got := f.engine.metrics.Value(MetricLoginMFARequired); got != 1 {
		t.Fatalf("expected mfa-required metric, got %d", got)
	}
}

func TestLoginMFALookupFailureRequiresMFA(t *testing.T) {
	f := newFixture(t, nil)
	f.store.mfaErr = errStoreDown

	res, err := f.engine.Login(context.Background(), "alice", "correct-horse", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.MFARequired {
		t.Fatal("an unreadable enrollment must require MFA")
	}
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	login, err := f.engine.Login(ctx, "alice", "correct-horse", true)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	next, err := f.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Fatal("expected both tokens from refresh")
	}
	if next.Principal.ID != "u-alice" {
		t.Fatalf("unexpected principal %+v", next.Principal)
	}

	if _, err := f.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected reuse to fail with ErrInvalidRefreshToken, got %v", err)
	}
	if got := f.engine.metrics.Value(MetricRefreshReuseDetected); got != 1 {
		t.Fatalf("expected one reuse detection, got %d", got)
	}
}

func TestRefreshFailuresCollapse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	login, err := f.engine.Login(ctx, "alice", "correct-horse", true)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"access token": login.AccessToken,
	} {
		if _, err := f.engine.Refresh(ctx, token); err != ErrInvalidRefreshToken {
			t.Fatalf("%s: expected ErrInvalidRefreshToken, got %v", name, err)
		}
	}

	f.store.mu.Lock()
	rec := f.store.accounts["u-alice"]
	rec.Status = AccountDisabled
	f.store.accounts["u-alice"] = rec
	f.store.mu.Unlock()

	if _, err := f.engine.Refresh(ctx, login.RefreshToken); err != ErrInvalidRefreshToken {
		t.Fatalf("disabled account: expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestValidateAccessSkipsStore(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Builder) {
		cfg.Metrics.EnableLatencyHistograms = true
	})
	ctx := context.Background()

	login, err := f.engine.Login(ctx, "alice", "correct-horse", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	f.store.getByLoginCalls, f.store.getByIDCalls = 0, 0

	p, err := f.engine.ValidateAccess(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if p.ID != "u-alice" || p.Role != RoleAdmin {
		t.Fatalf("unexpected principal %+v", p)
	}
	if f.store.getByLoginCalls != 0 || f.store.getByIDCalls != 0 {
		t.Fatal("validate must not read the credential store")
	}
	if len(f.engine.MetricsSnapshot().Histograms[MetricValidateLatency]) != 8 {
		t.Fatal("expected validate latency histogram")
	}

	if _, err := f.engine.ValidateAccess(ctx, "garbage"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestPrincipalRereadsStore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.engine.Principal(ctx, "u-alice")
	if err != nil {
		t.Fatalf("Principal failed: %v", err)
	}
	if p.LoginID != "alice" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := f.engine.Principal(ctx, "u-bob"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("disabled account must not resolve, got %v", err)
	}
	if _, err := f.engine.Principal(ctx, "u-missing"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "a", "b", false); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Logout(context.Background(), "", ""); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func storedHash(f *engineFixture, id string) string {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.accounts[id].PasswordHash
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Builder) {
		cfg.Password.BcryptCost = 5
	})
	ctx := context.Background()

	if _, err := f.engine.Login(ctx, "alice", "correct-horse", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if h := storedHash(f, "u-alice"); !strings.HasPrefix(h, "$2a$05$") {
		t.Fatalf("expected hash upgraded to cost 5, got %s", h)
	}
	if _, err := f.engine.Login(ctx, "alice", "correct-horse", false); err != nil {
		t.Fatalf("Login with upgraded hash failed: %v", err)
	}
	if f.store.rehashCalls != 1 {
		t.Fatalf("expected exactly one rehash, got %d", f.store.rehashCalls)
	}

	if _, err := f.engine.Login(ctx, "bob", "correct-horse", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected disabled account to be refused, got %v", err)
	}
	if h := storedHash(f, "u-bob"); !strings.HasPrefix(h, "$2a$04$") {
		t.Fatalf("refused login must not rehash, got %s", h)
	}
}

func TestLoginMigratesHashAlgorithm(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Builder) {
		cfg.Password.Algorithm = "argon2id"
	})
	ctx := context.Background()

	if _, err := f.engine.Login(ctx, "alice", "correct-horse", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if h := storedHash(f, "u-alice"); !strings.HasPrefix(h, "$argon2id$") {
		t.Fatalf("expected argon2id hash after login, got %s", h)
	}
	if _, err := f.engine.Login(ctx, "alice", "correct-horse", false); err != nil {
		t.Fatalf("Login with migrated hash failed: %v", err)
	}
}

func TestLoginCurrentHashIsLeftAlone(t *testing.T) {
	f := newFixture(t, nil)
	before := storedHash(f, "u-alice")

	if _, err := f.engine.Login(context.Background(), "alice", "correct-horse", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if f.store.rehashCalls != 0 || storedHash(f, "u-alice") != before {
		t.Fatal("hash at the configured cost must not be rewritten")
	}
}

func TestLoginSurvivesRehashFailure(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Builder) {
		cfg.Password.BcryptCost = 5
	})
	f.store.rehashErr = errStoreDown
	before := storedHash(f, "u-alice")

	if _, err := f.engine.Login(context.Background(), "alice", "correct-horse", false); err != nil {
		t.Fatalf("rehash failure must not fail login, got %v", err)
	}
	if storedHash(f, "u-alice") != before {
		t.Fatal("failed rehash must leave the stored hash")
	}
}
