package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to driver ("sqlite" or "postgres"). An in-memory sqlite
// database is pinned to one connection so every query sees the same data.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres, "postgresql", "pgx":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}

	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Store implements procureauth.CredentialStore and procureauth.MFAStore.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the handle so callers can share it with other gorm-backed
// components such as the blacklist.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every table the store owns.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Account{},
		&LegacyAccount{},
		&RecoveryCode{},
	)
}

// NewAccount describes an account to create.
type NewAccount struct {
	LoginID      string
	PasswordHash string
	Role         string
	TenantID     string
	ProfileID    string
	Disabled     bool
}

var ErrLoginIDTaken = errors.New("store: login id already exists")

// CreateAccount inserts an active account and returns its generated id.
func (s *Store) CreateAccount(ctx context.Context, in NewAccount) (string, error) {
	if in.LoginID == "" || in.PasswordHash == "" {
		return "", errors.New("store: login id and password hash are required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Account{}).Where("username = ?", in.LoginID).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", ErrLoginIDTaken
	}

	row := Account{
		ID:           uuid.NewString(),
		TenantID:     optional(in.TenantID),
		LoginID:      in.LoginID,
		PasswordHash: in.PasswordHash,
		Role:         defaultRole(in.Role),
		Status:       statusActive,
		ProfileID:    optional(in.ProfileID),
	}
	if in.Disabled {
		row.Status = statusDisabled
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

const (
	statusActive   = "active"
	statusDisabled = "disabled"
)

func defaultRole(role string) string {
	if role == "" {
		return "USER"
	}
	return strings.ToUpper(role)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
