package database

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"budgetoffice/internal/logger"
	"budgetoffice/internal/models"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUnsupportedOperation is returned for versioned migration commands on SQLite,
// whose schema is managed by auto-migration.
var ErrUnsupportedOperation = errors.New("operation not supported for sqlite databases")

// Manager handles database operations
type Manager struct {
	db     *gorm.DB
	config *Config
}

// NewManager opens the database described by config.
func NewManager(config *Config) (*Manager, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  config.DSN(),
			PreferSimpleProtocol: true,
		})
	case DriverSQLite:
		dialector = sqlite.Open(config.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if config.Driver == DriverSQLite {
		// A single connection serializes writers and keeps in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &Manager{db: db, config: config}, nil
}

// Migrate brings the schema up to date. PostgreSQL uses the embedded SQL
// migrations; SQLite is auto-migrated from the models.
func (m *Manager) Migrate() error {
	logger.Get().Infow("Running database migrations...", "driver", m.config.Driver)

	if m.config.Driver == DriverSQLite {
		if err := m.db.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		logger.Get().Info("Database migrations completed successfully")
		return nil
	}

	err := m.withMigrator(func(mig *migrate.Migrate) error {
		if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Get().Info("Database migrations completed successfully")
	return nil
}

// Rollback reverts the given number of applied migrations.
func (m *Manager) Rollback(steps int) error {
	if m.config.Driver == DriverSQLite {
		return ErrUnsupportedOperation
	}
	return m.withMigrator(func(mig *migrate.Migrate) error {
		if err := mig.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		return nil
	})
}

// Version reports the current migration version and whether it is dirty.
func (m *Manager) Version() (version uint, dirty bool, err error) {
	if m.config.Driver == DriverSQLite {
		return 0, false, ErrUnsupportedOperation
	}
	err = m.withMigrator(func(mig *migrate.Migrate) error {
		var verr error
		version, dirty, verr = mig.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		return verr
	})
	return version, dirty, err
}

func (m *Manager) withMigrator(fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	mig, err := migrate.NewWithSourceInstance("iofs", src, m.config.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	return fn(mig)
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
