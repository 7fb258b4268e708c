package procureauth

import (
	"context"
	"time"
)

// AccountStatus is the lifecycle state of a credential record.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Role names carried in access tokens.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// CredentialRecord is the stored view of an account used for login.
type CredentialRecord struct {
	ID           string
	LoginID      string
	PasswordHash string
	Role         string
	Status       AccountStatus
	ProfileID    string
	TenantID     string
}

// Principal is the authenticated identity derived from a credential record.
// It never carries the password hash.
type Principal struct {
	ID        string `json:"id"`
	LoginID   string `json:"loginId"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
}

// PrincipalFromRecord strips secrets from rec.
func PrincipalFromRecord(rec CredentialRecord) Principal {
	return Principal{
		ID:        rec.ID,
		LoginID:   rec.LoginID,
		Role:      rec.Role,
		TenantID:  rec.TenantID,
		ProfileID: rec.ProfileID,
	}
}

// MFAEnrollment is the per-account second-factor state. Recovery codes are
// held by the store as hashes. RecoveryCodeHashes is optional: when a store
// fills it the engine matches a presented code against it before asking
// the store to consume that hash, otherwise the store matches by lookup.
// Neither the hashes nor the secret leave the engine.
type MFAEnrollment struct {
	Enabled                bool
	Secret                 string
	RecoveryCodesRemaining int
	RecoveryCodeHashes     []string
	LastUsedAt             *time.Time
}

// CredentialStore resolves accounts. GetByLoginID and GetByID return
// ErrPrincipalNotFound when nothing matches.
type CredentialStore interface {
	GetByLoginID(ctx context.Context, loginID string) (CredentialRecord, error)
	GetByID(ctx context.Context, id string) (CredentialRecord, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// PasswordRehasher is implemented by credential stores that can replace a
// stored hash. When the store provides it, a hash weaker than the configured
// algorithm and cost is replaced after the next successful login.
// UpdatePasswordHash must only write when the stored hash still equals
// oldHash.
type PasswordRehasher interface {
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error
}

// MFAStore persists enrollments. ConsumeRecoveryCode must remove the
// matching hash with a single conditional write and report whether this
// call removed it, so concurrent callers cannot both succeed.
type MFAStore interface {
	GetMFA(ctx context.Context, accountID string) (MFAEnrollment, error)
	EnableMFA(ctx context.Context, accountID, secret string, codeHashes []string, at time.Time) error
	DisableMFA(ctx context.Context, accountID string) error
	TouchMFA(ctx context.Context, accountID string, at time.Time) error
	ConsumeRecoveryCode(ctx context.Context, accountID, codeHash string, at time.Time) (bool, error)
}

// TokenBlacklist records revoked tokens until their natural expiry.
type TokenBlacklist interface {
	Add(ctx context.Context, token string, expiresAt time.Time) error
	Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	Contains(ctx context.Context, token string) (bool, error)
}

// LoginResult is returned by Login and Refresh. RefreshToken is empty when
// the caller did not ask to be remembered.
type LoginResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Principal        Principal
	MFARequired      bool
}

// MFASetup is a preview enrollment. Nothing in it is persisted until
// EnableMFA confirms a code generated from Secret.
type MFASetup struct {
	Secret        string
	OTPAuthURL    string
	QRCodeDataURL string
	RecoveryCodes []string
}

// MFAEnableResult carries the plaintext recovery codes. They are shown once
// and cannot be retrieved again.
type MFAEnableResult struct {
	Enabled       bool
	RecoveryCodes []string
}

// MFAStatus is the read-only view served by the status endpoint.
type MFAStatus struct {
	Enabled                bool
	LastUsed               *time.Time
	RecoveryCodesRemaining int
}
