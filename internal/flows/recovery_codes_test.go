package flows

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

var recoveryCodeShape = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}(-[A-HJ-NP-Z2-9]{4}){3}$`)

func TestGenerateRecoveryCodesShape(t *testing.T) {
	codes, hashes, err := GenerateRecoveryCodes(16, nil)
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes failed: %v", err)
	}
	if len(codes) != 16 || len(hashes) != 16 {
		t.Fatalf("expected 16 codes and hashes, got %d/%d", len(codes), len(hashes))
	}
	seen := make(map[string]struct{}, len(codes))
	for i, c := range codes {
		if !recoveryCodeShape.MatchString(c) {
			t.Fatalf("code %q does not match XXXX-XXXX-XXXX-XXXX", c)
		}
		if hashes[i] != HashRecoveryCode(c) {
			t.Fatalf("hash %d does not correspond to its code", i)
		}
		if strings.Contains(hashes[i], c) {
			t.Fatal("hash must not embed the plaintext")
		}
		seen[c] = struct{}{}
	}
	if len(seen) != len(codes) {
		t.Fatal("expected distinct codes")
	}
}

func TestGenerateRecoveryCodesDefaultCount(t *testing.T) {
	codes, _, err := GenerateRecoveryCodes(0, nil)
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes failed: %v", err)
	}
	if len(codes) != DefaultRecoveryCodes {
		t.Fatalf("expected %d codes, got %d", DefaultRecoveryCodes, len(codes))
	}
}

func TestGenerateRecoveryCodesPropagatesRandomError(t *testing.T) {
	boom := errors.New("entropy exhausted")
	_, _, err := GenerateRecoveryCodes(4, func(int) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected random source error, got %v", err)
	}
}

func TestCanonicalizeRecoveryCode(t *testing.T) {
	cases := map[string]string{
		"ABCD-EFGH-JKLM-NPQR":    "ABCDEFGHJKLMNPQR",
		" abcd efgh-jklm npqr  ": "ABCDEFGHJKLMNPQR",
		"abcdefghjklmnpqr":       "ABCDEFGHJKLMNPQR",
		"":                       "",
	}
	for in, want := range cases {
		if got := CanonicalizeRecoveryCode(in); got != want {
			t.Fatalf("CanonicalizeRecoveryCode(%q) = %q, want %q", in, got, want)
		}
	}
	if HashRecoveryCode("abcd-efgh-jklm-npqr") != HashRecoveryCode("ABCDEFGHJKLMNPQR") {
		t.Fatal("hash must be computed over the canonical form")
	}
}

func TestVerifyAndConsumeRecoveryCode(t *testing.T) {
	codes, hashes, err := GenerateRecoveryCodes(3, nil)
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes failed: %v", err)
	}

	ok, idx := VerifyAndConsumeRecoveryCode(strings.ToLower(codes[2]), hashes)
	if !ok || idx != 2 {
		t.Fatalf("expected match at 2, got %v/%d", ok, idx)
	}
	if ok, idx := VerifyAndConsumeRecoveryCode("ZZZZ-ZZZZ-ZZZZ-ZZZZ", hashes); ok || idx != -1 {
		t.Fatalf("unexpected match %v/%d", ok, idx)
	}
	if ok, _ := VerifyAndConsumeRecoveryCode("  ", hashes); ok {
		t.Fatal("blank input must not match")
	}
}
