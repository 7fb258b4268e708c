package procureauth

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
)

var rfcSecret = base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("12345678901234567890"))

func TestTOTPVerifyRFCVectors(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Issuer: "ProcureERP"})
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(tc.code, rfcSecret, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPVerifyWindowIsOneStep(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Issuer: "ProcureERP"})

	if ok, _ := m.VerifyCode("287082", rfcSecret, time.Unix(59+30, 0)); !ok {
		t.Fatal("previous step must be accepted")
	}
	if ok, _ := m.VerifyCode("287082", rfcSecret, time.Unix(59-30, 0)); !ok {
		t.Fatal("next step must be accepted")
	}
	if ok, _ := m.VerifyCode("287082", rfcSecret, time.Unix(59+60, 0)); ok {
		t.Fatal("two steps back must be rejected")
	}
}

func TestTOTPVerifyMalformedCode(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Issuer: "ProcureERP"})
	now := time.Unix(59, 0)

	for _, code := range []string{"", "12345", "1234567", "28708a", "28 082"} {
		ok, err := m.VerifyCode(code, rfcSecret, now)
		if err != nil || ok {
			t.Fatalf("code %q: expected plain mismatch, ok=%v err=%v", code, ok, err)
		}
	}
	if ok, _ := m.VerifyCode(" 287082 ", rfcSecret, now); !ok {
		t.Fatal("surrounding whitespace should be ignored")
	}
	if _, err := m.VerifyCode("287082", "", now); err == nil {
		t.Fatal("empty secret must be an error")
	}
	if _, err := m.VerifyCode("287082", "!!!not-base32!!!", now); err == nil {
		t.Fatal("undecodable secret must be an error")
	}
}

func TestTOTPEnrollGeneratesUsableKey(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Issuer: "ProcureERP"})
	key, err := m.Enroll("alice")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(key.Secret())
	if err != nil {
		t.Fatalf("secret is not base32: %v", err)
	}
	if len(raw) < 20 {
		t.Fatalf("secret must carry at least 160 bits, got %d bytes", len(raw))
	}
	if !strings.HasPrefix(key.URL(), "otpauth://totp/ProcureERP:alice?") {
		t.Fatalf("unexpected uri %q", key.URL())
	}
	if key.Issuer() != "ProcureERP" || key.Period() != 30 || key.Digits() != otp.DigitsSix {
		t.Fatalf("unexpected key parameters %+v", key)
	}

	other, _ := m.Enroll("alice")
	if other.Secret() == key.Secret() {
		t.Fatal("secrets must be fresh per enrollment")
	}
}

func TestQRCodeDataURL(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Issuer: "ProcureERP"})
	key, err := m.Enroll("bob")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	url, err := QRCodeDataURL(key.URL())
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") || len(url) < 200 {
		t.Fatalf("unexpected data url prefix/length %d", len(url))
	}
}
