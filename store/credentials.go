package store

import (
	"context"
	"time"

	"github.com/MrEthical07/procureauth"
)

var (
	_ procureauth.CredentialStore  = (*Store)(nil)
	_ procureauth.PasswordRehasher = (*Store)(nil)
)

func (s *Store) GetByLoginID(ctx context.Context, loginID string) (procureauth.CredentialRecord, error) {
	res, err := s.Resolve(ctx, loginID)
	if err != nil {
		return procureauth.CredentialRecord{}, err
	}
	return res.Record()
}

func (s *Store) GetByID(ctx context.Context, id string) (procureauth.CredentialRecord, error) {
	res, err := s.resolveID(ctx, id)
	if err != nil {
		return procureauth.CredentialRecord{}, err
	}
	return res.Record()
}

// RecordLogin stamps last_login_at. Legacy accounts have no such column and
// are left untouched.
func (s *Store) RecordLogin(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	return s.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		Update("last_login_at", &at).Error
}

// UpdatePasswordHash replaces oldHash with newHash on whichever table holds
// the account. The write is conditional on the stored hash still being
// oldHash, so a password changed in the meantime is never overwritten.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	res := s.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ? AND password_hash = ?", id, oldHash).
		Update("password_hash", newHash)
	if res.Error != nil || res.RowsAffected > 0 {
		return res.Error
	}
	return s.db.WithContext(ctx).
		Model(&LegacyAccount{}).
		Where("emp_account_id = ? AND password_hash = ?", id, oldHash).
		Update("password_hash", newHash).Error
}

// SetStatus enables or disables a current account by login id.
func (s *Store) SetStatus(ctx context.Context, loginID string, active bool) error {
	status := statusDisabled
	if active {
		status = statusActive
	}
	res := s.db.WithContext(ctx).
		Model(&Account{}).
		Where("username = ?", loginID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return procureauth.ErrPrincipalNotFound
	}
	return nil
}
