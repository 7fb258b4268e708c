package flows

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	// RecoveryCodeAlphabet omits 0/O and 1/I so codes survive being read
	// aloud or copied by hand.
	RecoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RecoveryCodeLength   = 16
	DefaultRecoveryCodes = 16

	recoveryGroupSize = 4
)

// NewRecoveryCode returns RecoveryCodeLength random characters from
// RecoveryCodeAlphabet, unformatted.
func NewRecoveryCode(randomIndex func(int) (int, error)) (string, error) {
	if randomIndex == nil {
		randomIndex = cryptoRandomIndex
	}
	var b strings.Builder
	b.Grow(RecoveryCodeLength)
	for i := 0; i < RecoveryCodeLength; i++ {
		n, err := randomIndex(len(RecoveryCodeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(RecoveryCodeAlphabet[n])
	}
	return b.String(), nil
}

// FormatRecoveryCode groups code as XXXX-XXXX-XXXX-XXXX.
func FormatRecoveryCode(code string) string {
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		if i > 0 && i%recoveryGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(code[i])
	}
	return b.String()
}

// CanonicalizeRecoveryCode uppercases and strips separators so a user may
// type the code with or without dashes.
func CanonicalizeRecoveryCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// HashRecoveryCode returns the hex SHA-256 of the canonical form of code.
func HashRecoveryCode(code string) string {
	sum := sha256.Sum256([]byte(CanonicalizeRecoveryCode(code)))
	return hex.EncodeToString(sum[:])
}

// HashRecoveryCodes hashes each code with HashRecoveryCode.
func HashRecoveryCodes(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = HashRecoveryCode(c)
	}
	return out
}

// GenerateRecoveryCodes returns count formatted codes and their hashes.
func GenerateRecoveryCodes(count int, randomIndex func(int) (int, error)) ([]string, []string, error) {
	if count <= 0 {
		count = DefaultRecoveryCodes
	}
	codes := make([]string, 0, count)
	for len(codes) < count {
		raw, err := NewRecoveryCode(randomIndex)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, FormatRecoveryCode(raw))
	}
	return codes, HashRecoveryCodes(codes), nil
}

// VerifyAndConsumeRecoveryCode reports whether input matches one of hashes
// and at which index. Every hash is compared so the cost does not depend on
// the match position. The caller removes hashes[index] from storage with a
// conditional delete.
func VerifyAndConsumeRecoveryCode(input string, hashes []string) (bool, int) {
	canonical := CanonicalizeRecoveryCode(input)
	if canonical == "" {
		return false, -1
	}
	candidate := []byte(HashRecoveryCode(canonical))
	match := -1
	for i, h := range hashes {
		if subtle.ConstantTimeCompare(candidate, []byte(h)) == 1 && match < 0 {
			match = i
		}
	}
	return match >= 0, match
}

func cryptoRandomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
