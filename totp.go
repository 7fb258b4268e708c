package procureauth

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 20
	totpPeriod      = 30
	totpSkew        = 1
	qrImageSize     = 200
)

var errEmptyTOTPSecret = errors.New("empty totp secret")

type totpManager struct {
	issuer string
	rand   io.Reader
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{issuer: cfg.Issuer, rand: rand.Reader}
}

// Enroll creates a fresh 160-bit secret for account and its otpauth URI.
func (m *totpManager) Enroll(account string) (*otp.Key, error) {
	if m == nil {
		return nil, ErrEngineNotReady
	}
	return totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  totpSecretBytes,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Rand:        m.rand,
	})
}

// VerifyCode checks code against secret at now with a ±1 step window.
// Malformed codes are a plain mismatch; an unusable secret is an error.
func (m *totpManager) VerifyCode(code, secret string, now time.Time) (bool, error) {
	if m == nil {
		return false, ErrEngineNotReady
	}
	code = strings.TrimSpace(code)
	if len(code) != int(otp.DigitsSix) || !isNumericString(code) {
		return false, nil
	}
	if strings.TrimSpace(secret) == "" {
		return false, errEmptyTOTPSecret
	}

	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// QRCodeDataURL renders an otpauth URI as an inline PNG.
func QRCodeDataURL(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", err
	}
	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
