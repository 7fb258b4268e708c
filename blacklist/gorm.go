package blacklist

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RevokedToken is one blacklist row. Rows are hard-deleted by Sweep once
// ExpiresAt has passed.
type RevokedToken struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	TokenHash string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_revoked_tokens_hash"`
	ExpiresAt time.Time `gorm:"not null;index:idx_revoked_tokens_expires"`
}

// TableName pins the table name.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// Gorm stores the blacklist in a SQL table.
type Gorm struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGorm wraps db. Call Migrate once at startup.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, now: time.Now}
}

// Migrate creates or updates the revoked_tokens table.
func (g *Gorm) Migrate() error {
	return g.db.AutoMigrate(&RevokedToken{})
}

// Add inserts the fingerprint, ignoring duplicates.
func (g *Gorm) Add(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := g.Claim(ctx, token, expiresAt)
	return err
}

// Claim inserts the fingerprint and reports whether this call inserted it.
// The unique index on token_hash serializes concurrent claims.
func (g *Gorm) Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	if !expiresAt.After(g.now()) {
		return false, nil
	}
	row := RevokedToken{TokenHash: Fingerprint(token), ExpiresAt: expiresAt.UTC()}
	res := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_hash"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Contains reports whether an unexpired row exists for token.
func (g *Gorm) Contains(ctx context.Context, token string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&RevokedToken{}).
		Where("token_hash = ? AND expires_at > ?", Fingerprint(token), g.now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count > 0, nil
}

// Sweep deletes expired rows and returns how many were removed.
func (g *Gorm) Sweep(ctx context.Context) (int64, error) {
	res := g.db.WithContext(ctx).Where("expires_at <= ?", g.now().UTC()).Delete(&RevokedToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}
