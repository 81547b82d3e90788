package database

import (
	"errors"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillVanishExpiry    = "2026-10-01_backfill_vanish_expiry"
	migrationDeactivateBlankDevices  = "2026-10-01_deactivate_blank_device_tokens"
	migrationScrubDeletedMessageBody = "2026-10-08_scrub_deleted_message_bodies"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillVanishExpiry, apply: backfillVanishExpiry},
		{name: migrationDeactivateBlankDevices, apply: deactivateBlankDevices},
		{name: migrationScrubDeletedMessageBody, apply: scrubDeletedMessageBodies},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Vanish rows written without an expiry would never be reaped.
func backfillVanishExpiry(db *gorm.DB) error {
	ttl := int64(messages.DefaultVanishTTL / time.Second)
	return db.Model(&messages.Message{}).
		Where("kind = ? AND expires_at_s IS NULL", messages.KindVanish).
		Update("expires_at_s", gorm.Expr("created_at_s + ?", ttl)).Error
}

func deactivateBlankDevices(db *gorm.DB) error {
	return db.Model(&notifications.DeviceEndpoint{}).
		Where("token = ? AND active = ?", "", true).
		Update("active", false).Error
}

func scrubDeletedMessageBodies(db *gorm.DB) error {
	return db.Model(&messages.Message{}).
		Where("is_deleted = ? AND (content <> ? OR media_ref IS NOT NULL)", true, messages.DeletedPlaceholder).
		Updates(map[string]any{"content": messages.DeletedPlaceholder, "media_ref": gorm.Expr("NULL")}).Error
}
