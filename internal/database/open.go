package database

import (
	"fmt"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/social"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the storage backend.
type Config struct {
	Driver string
	Path   string
	DSN    string
}

// Open establishes the configured connection and performs schema migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("database path is required")
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", driverName(cfg.Driver)))
	return db, nil
}

// Migrate creates or updates every table and applies pending named migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&users.User{},
		&messages.Message{},
		&messages.ScreenshotAlert{},
		&notifications.Record{},
		&notifications.DeviceEndpoint{},
		&social.Post{},
		&social.PostLike{},
		&social.PostComment{},
		&social.FollowRequest{},
		&social.Story{},
		&migrationRecord{},
	); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func driverName(driver string) string {
	if driver == "" {
		return DriverSQLite
	}
	return driver
}
