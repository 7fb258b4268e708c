package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MigrationReport lists what MigrateLegacyAccounts did, or would do on a
// dry run.
type MigrationReport struct {
	Migrated []string `json:"migrated"`
	Skipped  []string `json:"skipped"`
	DryRun   bool     `json:"dryRun"`
}

// MigrateLegacyAccounts copies every emp_accounts row into login_accounts.
// A row is skipped when its code is already a login id or its employee id is
// already linked. The valid flag becomes the account status.
func (s *Store) MigrateLegacyAccounts(ctx context.Context, dryRun bool) (MigrationReport, error) {
	report := MigrationReport{DryRun: dryRun}

	var legacy []LegacyAccount
	if err := s.db.WithContext(ctx).Order("emp_account_cd").Find(&legacy).Error; err != nil {
		return report, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range legacy {
			exists, err := legacyAlreadyMigrated(tx, l)
			if err != nil {
				return err
			}
			if exists {
				report.Skipped = append(report.Skipped, l.Code)
				continue
			}
			report.Migrated = append(report.Migrated, l.Code)
			if dryRun {
				continue
			}

			rec := recordFromLegacy(l)
			row := Account{
				ID:           uuid.NewString(),
				TenantID:     l.TenantID,
				LoginID:      l.Code,
				PasswordHash: rec.PasswordHash,
				Role:         rec.Role,
				Status:       string(rec.Status),
				ProfileID:    optional(l.ID),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return report, err
}

func legacyAlreadyMigrated(tx *gorm.DB, l LegacyAccount) (bool, error) {
	var acc Account
	err := tx.Select("id").Where("username = ? OR emp_account_id = ?", l.Code, l.ID).Take(&acc).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}
