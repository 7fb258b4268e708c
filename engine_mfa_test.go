package procureauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	return code
}

// wrongCode returns a well-formed code outside the accepted window.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for _, off := range []time.Duration{-60 * time.Second, -30 * time.Second, 0, 30 * time.Second, 60 * time.Second} {
		c, err := totp.GenerateCode(secret, now.Add(off))
		if err != nil {
			t.Fatalf("GenerateCode failed: %v", err)
		}
		valid[c] = true
	}
	for i := 0; i < 1000000; i++ {
		c := fmt.Sprintf("%06d", i)
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no wrong code available")
	return ""
}

func enrollAlice(t *testing.T, f *engineFixture) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := f.engine.SetupMFA(ctx, "u-alice")
	if err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}
	res, err := f.engine.EnableMFA(ctx, "u-alice", setup.Secret, currentCode(t, setup.Secret))
	if err != nil {
		t.Fatalf("EnableMFA failed: %v", err)
	}
	return setup.Secret, res.RecoveryCodes
}

func TestSetupMFAPersistsNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	setup, err := f.engine.SetupMFA(ctx, "u-alice")
	if err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}
	if len(setup.Secret) < 32 {
		t.Fatalf("expected a base32 secret of at least 160 bits, got %q", setup.Secret)
	}
	if !strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/ProcureERP:alice?") {
		t.Fatalf("unexpected otpauth url %q", setup.OTPAuthURL)
	}
	if !strings.HasPrefix(setup.QRCodeDataURL, "data:image/png;base64,") {
		t.Fatalf("unexpected qr data url prefix")
	}
	if len(setup.RecoveryCodes) != 16 {
		t.Fatalf("expected 16 recovery codes, got %d", len(setup.RecoveryCodes))
	}

	status, err := f.engine.MFAStatus(ctx, "u-alice")
	if err != nil {
		t.Fatalf("MFAStatus failed: %v", err)
	}
	if status.Enabled {
		t.Fatal("setup must not enable MFA")
	}
}

func TestEnableMFA(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	setup, err := f.engine.SetupMFA(ctx, "u-alice")
	if err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}

	if _, err := f.engine.EnableMFA(ctx, "u-alice", setup.Secret, wrongCode(t, setup.Secret)); !errors.Is(err, ErrInvalidMFAToken) {
		t.Fatalf("expected ErrInvalidMFAToken, got %v", err)
	}
	if st, _ := f.engine.MFAStatus(ctx, "u-alice"); st.Enabled {
		t.Fatal("a failed enable must not persist")
	}

	res, err := f.engine.EnableMFA(ctx, "u-alice", setup.Secret, currentCode(t, setup.Secret))
	if err != nil {
		t.Fatalf("EnableMFA failed: %v", err)
	}
	if !res.Enabled || len(res.RecoveryCodes) != 16 {
		t.Fatalf("unexpected enable result %+v", res)
	}

	status, err := f.engine.MFAStatus(ctx, "u-alice")
	if err != nil {
		t.Fatalf("MFAStatus failed: %v", err)
	}
	if !status.Enabled || status.LastUsed == nil || status.RecoveryCodesRemaining != 16 {
		t.Fatalf("unexpected status %+v", status)
	}

	if _, err := f.engine.SetupMFA(ctx, "u-alice"); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("expected ErrMFAAlreadyEnabled from setup, got %v", err)
	}
	if _, err := f.engine.EnableMFA(ctx, "u-alice", setup.Secret, currentCode(t, setup.Secret)); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("expected ErrMFAAlreadyEnabled from enable, got %v", err)
	}
}

func TestDisableMFAIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	enrollAlice(t, f)

	for i := 0; i < 2; i++ {
		if err := f.engine.DisableMFA(ctx, "u-alice"); err != nil {
			t.Fatalf("DisableMFA call %d failed: %v", i+1, err)
		}
		status, err := f.engine.MFAStatus(ctx, "u-alice")
		if err != nil {
			t.Fatalf("MFAStatus failed: %v", err)
		}
		if status.Enabled || status.RecoveryCodesRemaining != 0 || status.LastUsed != nil {
			t.Fatalf("expected cleared enrollment, got %+v", status)
		}
	}
}

func TestVerifyMFA(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.engine.VerifyMFA(ctx, "u-alice", "123456"); !errors.Is(err, ErrMFANotConfigured) {
		t.Fatalf("expected ErrMFANotConfigured, got %v", err)
	}

	secret, _ := enrollAlice(t, f)

	ok, err := f.engine.VerifyMFA(ctx, "u-alice", wrongCode(t, secret))
	if err != nil || ok {
		t.Fatalf("wrong code must be (false, nil), got (%v, %v)", ok, err)
	}
	ok, err = f.engine.VerifyMFA(ctx, "u-alice", "12ab56")
	if err != nil || ok {
		t.Fatalf("malformed code must be (false, nil), got (%v, %v)", ok, err)
	}
	ok, err = f.engine.VerifyMFA(ctx, "u-alice", currentCode(t, secret))
	if err != nil || !ok {
		t.Fatalf("current code must verify, got (%v, %v)", ok, err)
	}
}

func TestVerifyMFARateLimited(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	secret, _ := enrollAlice(t, f)
	bad := wrongCode(t, secret)

	for i := 1; i < 5; i++ {
		if ok, err := f.engine.VerifyMFA(ctx, "u-alice", bad); ok || err != nil {
			t.Fatalf("attempt %d: expected (false, nil), got (%v, %v)", i, ok, err)
		}
	}
	if _, err := f.engine.VerifyMFA(ctx, "u-alice", bad); !errors.Is(err, ErrMFARateLimited) {
		t.Fatalf("fifth failure must trip the limiter, got %v", err)
	}
	if _, err := f.engine.VerifyMFA(ctx, "u-alice", currentCode(t, secret)); !errors.Is(err, ErrMFARateLimited) {
		t.Fatalf("a correct code must not bypass the limiter, got %v", err)
	}
	if _, err := f.engine.VerifyRecoveryCode(ctx, "u-alice", "AAAA-AAAA-AAAA-AAAA"); !errors.Is(err, ErrMFARateLimited) {
		t.Fatalf("recovery shares the limiter, got %v", err)
	}

	f.redis.FastForward(16 * time.Minute)
	ok, err := f.engine.VerifyMFA(ctx, "u-alice", currentCode(t, secret))
	if err != nil || !ok {
		t.Fatalf("expected verify after cooldown, got (%v, %v)", ok, err)
	}
}

func TestVerifyMFAStoreUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.store.mfaErr = errStoreDown

	if _, err := f.engine.VerifyMFA(context.Background(), "u-alice", "123456"); !errors.Is(err, ErrMFAStoreUnavailable) {
		t.Fatalf("expected ErrMFAStoreUnavailable, got %v", err)
	}
}

func TestRecoveryCodeWorksOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, codes := enrollAlice(t, f)

	input := strings.ToLower(strings.ReplaceAll(codes[3], "-", " "))
	ok, err := f.engine.VerifyRecoveryCode(ctx, "u-alice", input)
	if err != nil || !ok {
		t.Fatalf("first use must succeed, got (%v, %v)", ok, err)
	}
	ok, err = f.engine.VerifyRecoveryCode(ctx, "u-alice", codes[3])
	if err != nil || ok {
		t.Fatalf("second use must fail, got (%v, %v)", ok, err)
	}

	status, err := f.engine.MFAStatus(ctx, "u-alice")
	if err != nil {
		t.Fatalf("MFAStatus failed: %v", err)
	}
	if status.RecoveryCodesRemaining != 15 {
		t.Fatalf("expected 15 codes remaining, got %d", status.RecoveryCodesRemaining)
	}
	if got := f.engine.metrics.Value(MetricRecoveryCodeUsed); got != 1 {
		t.Fatalf("expected one recovery code used, got %d", got)
	}
}

func TestRecoveryCodeMissSkipsStoreWrite(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, codes := enrollAlice(t, f)

	ok, err := f.engine.VerifyRecoveryCode(ctx, "u-alice", "ZZZZ-ZZZZ-ZZZZ-ZZZZ")
	if err != nil || ok {
		t.Fatalf("unknown code must fail, got (%v, %v)", ok, err)
	}
	if f.store.consumeCalls != 0 {
		t.Fatalf("a miss against exposed hashes must not reach the store, got %d calls", f.store.consumeCalls)
	}
	if ok, err := f.engine.VerifyRecoveryCode(ctx, "u-alice", codes[0]); err != nil || !ok {
		t.Fatalf("valid code must succeed, got (%v, %v)", ok, err)
	}
	if f.store.consumeCalls != 1 {
		t.Fatalf("expected one conditional delete, got %d", f.store.consumeCalls)
	}
}

func TestRecoveryCodeWithoutExposedHashes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, codes := enrollAlice(t, f)
	f.store.hideHashes = true

	if ok, err := f.engine.VerifyRecoveryCode(ctx, "u-alice", codes[5]); err != nil || !ok {
		t.Fatalf("store-side match must succeed, got (%v, %v)", ok, err)
	}
	if ok, err := f.engine.VerifyRecoveryCode(ctx, "u-alice", codes[5]); err != nil || ok {
		t.Fatalf("replay must fail, got (%v, %v)", ok, err)
	}
}

func TestRecoveryCodeConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Builder) {
		cfg.MFA.MaxFailedAttempts = 64
	})
	_, codes := enrollAlice(t, f)

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			ok, err := f.engine.VerifyRecoveryCode(context.Background(), "u-alice", codes[0])
			if err != nil {
				t.Errorf("VerifyRecoveryCode failed: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestRecoveryCodeNotConfigured(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.engine.VerifyRecoveryCode(context.Background(), "u-alice", "AAAA-AAAA-AAAA-AAAA"); !errors.Is(err, ErrMFANotConfigured) {
		t.Fatalf("expected ErrMFANotConfigured, got %v", err)
	}
}

func TestCheckMFAGuard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := &Principal{ID: "u-alice"}

	if err := f.engine.CheckMFA(ctx, alice, ""); err != nil {
		t.Fatalf("unenrolled principal must pass, got %v", err)
	}

	enrollAlice(t, f)

	if err := f.engine.CheckMFA(ctx, alice, ""); !errors.Is(err, ErrMFARequired) {
		t.Fatalf("expected ErrMFARequired, got %v", err)
	}

	other, _, err := f.engine.IssueMFAVerifiedToken("u-bob")
	if err != nil {
		t.Fatalf("IssueMFAVerifiedToken failed: %v", err)
	}
	if err := f.engine.CheckMFA(ctx, alice, other); !errors.Is(err, ErrInvalidMFAToken) {
		t.Fatalf("token for another subject must fail, got %v", err)
	}

	login, err := f.engine.Login(ctx, "alice", "correct-horse", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := f.engine.CheckMFA(ctx, alice, login.AccessToken); !errors.Is(err, ErrInvalidMFAToken) {
		t.Fatalf("access token must not pass as MFA token, got %v", err)
	}

	token, exp, err := f.engine.IssueMFAVerifiedToken("u-alice")
	if err != nil {
		t.Fatalf("IssueMFAVerifiedToken failed: %v", err)
	}
	if d := time.Until(exp); d <= 0 || d > 5*time.Minute {
		t.Fatalf("expected a lifetime of at most five minutes, got %v", d)
	}
	if err := f.engine.CheckMFA(ctx, alice, token); err != nil {
		t.Fatalf("valid MFA token must pass, got %v", err)
	}
	if got := f.engine.metrics.Value(MetricMFAGuardRejected); got != 3 {
		t.Fatalf("expected three guard rejections, got %d", got)
	}
}
