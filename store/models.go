package store

import "time"

// Account is a row of the current login table.
type Account struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	TenantID      *string    `gorm:"type:varchar(64);index"`
	LoginID       string     `gorm:"column:username;type:varchar(100);uniqueIndex;not null"`
	PasswordHash  string     `gorm:"type:text;not null"`
	Role          string     `gorm:"type:varchar(20);not null;default:'USER'"`
	Status        string     `gorm:"type:varchar(20);not null;default:'active'"`
	ProfileID     *string    `gorm:"column:emp_account_id;type:varchar(64);index"`
	MFAEnabled    bool       `gorm:"column:mfa_enabled;not null;default:false"`
	MFASecret     *string    `gorm:"column:mfa_secret;type:text"`
	MFALastUsedAt *time.Time `gorm:"column:mfa_last_used"`
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Account) TableName() string {
	return "login_accounts"
}

// LegacyAccount is a row of the employee table that held credentials
// before login_accounts existed. ValidFlag "1" means the employee may sign
// in.
type LegacyAccount struct {
	ID           string  `gorm:"column:emp_account_id;type:varchar(64);primaryKey"`
	Code         string  `gorm:"column:emp_account_cd;type:varchar(100);index;not null"`
	TenantID     *string `gorm:"type:varchar(64)"`
	PasswordHash *string `gorm:"type:text"`
	Role         string  `gorm:"type:varchar(20);not null;default:'USER'"`
	ValidFlag    string  `gorm:"column:valid_flg;type:char(1);not null;default:'1'"`
	Email        *string `gorm:"type:varchar(255)"`
}

func (LegacyAccount) TableName() string {
	return "emp_accounts"
}

// RecoveryCode is one unused recovery code hash.
type RecoveryCode struct {
	ID        uint   `gorm:"primaryKey"`
	AccountID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_recovery_account_hash"`
	CodeHash  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_recovery_account_hash"`
	CreatedAt time.Time
}

func (RecoveryCode) TableName() string {
	return "mfa_recovery_codes"
}
