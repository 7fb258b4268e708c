package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/procureauth"
	"gorm.io/gorm"
)

var _ procureauth.MFAStore = (*Store)(nil)

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", procureauth.ErrMFAStoreUnavailable, err)
}

// GetMFA returns the enrollment for accountID. Legacy and unknown accounts
// report a zero enrollment.
func (s *Store) GetMFA(ctx context.Context, accountID string) (procureauth.MFAEnrollment, error) {
	var acc Account
	err := s.db.WithContext(ctx).
		Select("id", "mfa_enabled", "mfa_secret", "mfa_last_used").
		Where("id = ?", accountID).
		Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return procureauth.MFAEnrollment{}, nil
	}
	if err != nil {
		return procureauth.MFAEnrollment{}, unavailable(err)
	}
	if !acc.MFAEnabled || acc.MFASecret == nil || *acc.MFASecret == "" {
		return procureauth.MFAEnrollment{}, nil
	}

	hashes := []string{}
	if err := s.db.WithContext(ctx).Model(&RecoveryCode{}).Where("account_id = ?", accountID).Order("id").Pluck("code_hash", &hashes).Error; err != nil {
		return procureauth.MFAEnrollment{}, unavailable(err)
	}

	return procureauth.MFAEnrollment{
		Enabled:                true,
		Secret:                 *acc.MFASecret,
		RecoveryCodesRemaining: len(hashes),
		RecoveryCodeHashes:     hashes,
		LastUsedAt:             acc.MFALastUsedAt,
	}, nil
}

// EnableMFA stores the secret and replaces every recovery code in one
// transaction.
func (s *Store) EnableMFA(ctx context.Context, accountID, secret string, codeHashes []string, at time.Time) error {
	at = at.UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Account{}).Where("id = ?", accountID).Updates(map[string]interface{}{
			"mfa_enabled":   true,
			"mfa_secret":    secret,
			"mfa_last_used": at,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return procureauth.ErrPrincipalNotFound
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&RecoveryCode{}).Error; err != nil {
			return err
		}
		if len(codeHashes) == 0 {
			return nil
		}
		rows := make([]RecoveryCode, 0, len(codeHashes))
		for _, h := range codeHashes {
			rows = append(rows, RecoveryCode{AccountID: accountID, CodeHash: h})
		}
		return tx.Create(&rows).Error
	})
	if err == nil || errors.Is(err, procureauth.ErrPrincipalNotFound) {
		return err
	}
	return unavailable(err)
}

// DisableMFA clears the secret and every recovery code. Running it on an
// account without MFA is not an error.
func (s *Store) DisableMFA(ctx context.Context, accountID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Account{}).Where("id = ?", accountID).Updates(map[string]interface{}{
			"mfa_enabled":   false,
			"mfa_secret":    nil,
			"mfa_last_used": nil,
		}).Error; err != nil {
			return err
		}
		return tx.Where("account_id = ?", accountID).Delete(&RecoveryCode{}).Error
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) TouchMFA(ctx context.Context, accountID string, at time.Time) error {
	at = at.UTC()
	if err := s.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ? AND mfa_enabled = ?", accountID, true).
		Update("mfa_last_used", &at).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

// ConsumeRecoveryCode deletes the matching row. Only the call whose DELETE
// affects exactly one row succeeds.
func (s *Store) ConsumeRecoveryCode(ctx context.Context, accountID, codeHash string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("account_id = ? AND code_hash = ?", accountID, codeHash).
		Delete(&RecoveryCode{})
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	if err := s.TouchMFA(ctx, accountID, at); err != nil {
		return true, err
	}
	return true, nil
}

// DisableMFAByLoginID is the administrative reset for a user who lost both
// the authenticator and every recovery code.
func (s *Store) DisableMFAByLoginID(ctx context.Context, loginID string) error {
	res, err := s.Resolve(ctx, loginID)
	if err != nil {
		return err
	}
	if res.Kind != Current {
		return procureauth.ErrPrincipalNotFound
	}
	return s.DisableMFA(ctx, res.Current.ID)
}

// MFAStatusRow is one line of the administrative MFA listing.
type MFAStatusRow struct {
	ID                     string     `json:"id"`
	LoginID                string     `json:"loginId"`
	ProfileID              string     `json:"profileId,omitempty"`
	Enabled                bool       `json:"enabled"`
	HasSecret              bool       `json:"hasSecret"`
	LastUsedAt             *time.Time `json:"lastUsedAt"`
	RecoveryCodesRemaining int        `json:"recoveryCodesRemaining"`
}

// ListMFAStatus reports MFA state for every current account ordered by
// login id. Secrets are never returned.
func (s *Store) ListMFAStatus(ctx context.Context) ([]MFAStatusRow, error) {
	var accounts []Account
	if err := s.db.WithContext(ctx).Order("username").Find(&accounts).Error; err != nil {
		return nil, err
	}

	type countRow struct {
		AccountID string
		N         int
	}
	var counts []countRow
	if err := s.db.WithContext(ctx).
		Model(&RecoveryCode{}).
		Select("account_id, count(*) as n").
		Group("account_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	remaining := make(map[string]int, len(counts))
	for _, c := range counts {
		remaining[c.AccountID] = c.N
	}

	out := make([]MFAStatusRow, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, MFAStatusRow{
			ID:                     a.ID,
			LoginID:                a.LoginID,
			ProfileID:              deref(a.ProfileID),
			Enabled:                a.MFAEnabled,
			HasSecret:              a.MFASecret != nil && *a.MFASecret != "",
			LastUsedAt:             a.MFALastUsedAt,
			RecoveryCodesRemaining: remaining[a.ID],
		})
	}
	return out, nil
}
