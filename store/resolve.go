package store

import (
	"context"
	"errors"

	"github.com/MrEthical07/procureauth"
	"gorm.io/gorm"
)

// ResolutionKind says which table a login id was found in.
type ResolutionKind int

const (
	NotFound ResolutionKind = iota
	Current
	Legacy
)

func (k ResolutionKind) String() string {
	switch k {
	case Current:
		return "current"
	case Legacy:
		return "legacy"
	default:
		return "not_found"
	}
}

// Resolution is the outcome of Resolve. Exactly one of Current and Legacy
// is set unless Kind is NotFound.
type Resolution struct {
	Kind    ResolutionKind
	Current *Account
	Legacy  *LegacyAccount
}

// Record maps the resolution onto a credential record.
func (r Resolution) Record() (procureauth.CredentialRecord, error) {
	switch r.Kind {
	case Current:
		return recordFromAccount(*r.Current), nil
	case Legacy:
		return recordFromLegacy(*r.Legacy), nil
	default:
		return procureauth.CredentialRecord{}, procureauth.ErrPrincipalNotFound
	}
}

// Resolve finds loginID in login_accounts, then in emp_accounts.
func (s *Store) Resolve(ctx context.Context, loginID string) (Resolution, error) {
	if loginID == "" {
		return Resolution{Kind: NotFound}, nil
	}

	var acc Account
	err := s.db.WithContext(ctx).Where("username = ?", loginID).Take(&acc).Error
	switch {
	case err == nil:
		return Resolution{Kind: Current, Current: &acc}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Resolution{}, err
	}

	var legacy LegacyAccount
	err = s.db.WithContext(ctx).Where("emp_account_cd = ?", loginID).Take(&legacy).Error
	switch {
	case err == nil:
		return Resolution{Kind: Legacy, Legacy: &legacy}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Resolution{Kind: NotFound}, nil
	default:
		return Resolution{}, err
	}
}

func (s *Store) resolveID(ctx context.Context, id string) (Resolution, error) {
	if id == "" {
		return Resolution{Kind: NotFound}, nil
	}

	var acc Account
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&acc).Error
	switch {
	case err == nil:
		return Resolution{Kind: Current, Current: &acc}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Resolution{}, err
	}

	var legacy LegacyAccount
	err = s.db.WithContext(ctx).Where("emp_account_id = ?", id).Take(&legacy).Error
	switch {
	case err == nil:
		return Resolution{Kind: Legacy, Legacy: &legacy}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Resolution{Kind: NotFound}, nil
	default:
		return Resolution{}, err
	}
}

func recordFromAccount(a Account) procureauth.CredentialRecord {
	status := procureauth.AccountActive
	if a.Status != statusActive {
		status = procureauth.AccountDisabled
	}
	return procureauth.CredentialRecord{
		ID:           a.ID,
		LoginID:      a.LoginID,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		Status:       status,
		ProfileID:    deref(a.ProfileID),
		TenantID:     deref(a.TenantID),
	}
}

func recordFromLegacy(l LegacyAccount) procureauth.CredentialRecord {
	status := procureauth.AccountActive
	if l.ValidFlag != "1" {
		status = procureauth.AccountDisabled
	}
	return procureauth.CredentialRecord{
		ID:           l.ID,
		LoginID:      l.Code,
		PasswordHash: deref(l.PasswordHash),
		Role:         defaultRole(l.Role),
		Status:       status,
		ProfileID:    l.ID,
		TenantID:     deref(l.TenantID),
	}
}
