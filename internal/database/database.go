package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinicmgr/clinic/internal/entities"
)

// connParams are appended to the file path when opening the clinic database.
// Immediate transactions take the write lock at BEGIN, so read-then-write
// sequences such as queue numbering run one at a time.
const connParams = "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"

// Models lists every persisted entity in migration order.
func Models() []any {
	return []any{
		&entities.User{},
		&entities.Patient{},
		&entities.MedicalHistory{},
		&entities.MedicalDocument{},
		&entities.Visit{},
		&entities.QueueCounter{},
		&entities.Appointment{},
		&entities.Surgery{},
		&entities.Prescription{},
		&entities.PrescriptionDetail{},
		&entities.Invoice{},
		&entities.InvoiceItem{},
		&entities.Payment{},
		&entities.InventoryItem{},
		&entities.InventoryTransaction{},
		&entities.Setting{},
		&entities.AuditEvent{},
	}
}

type Database struct {
	DB   *gorm.DB
	path string
}

// NewDatabase opens (creating if needed) the SQLite file at dbPath, migrates
// the schema and seeds default clinic settings.
func NewDatabase(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+connParams), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db, path: dbPath}

	if err := database.seedSettings(); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("database initialized")

	return database, nil
}

// Path is the database file path without connection parameters.
func (d *Database) Path() string {
	return d.path
}

// SQL exposes the underlying connection pool.
func (d *Database) SQL() (*sql.DB, error) {
	return d.DB.DB()
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) seedSettings() error {
	for key, value := range entities.DefaultSettings {
		setting := entities.Setting{Key: key}
		err := d.DB.Where(entities.Setting{Key: key}).
			Attrs(entities.Setting{Value: value}).
			FirstOrCreate(&setting).Error
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}
	return nil
}
