package database

import (
	"fmt"
	"time"

	"github.com/lmig/csserver/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps the GORM database connection against the configured
// persistence_manager.pg_conn_info Postgres DSN.
type DB struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Config holds database configuration.
type Config struct {
	ConnInfo string // Postgres DSN, e.g. "host=... user=... dbname=... sslmode=..."
}

// NewDB opens the Postgres connection and runs AutoMigrate against every
// d_callstream_* model.
func NewDB(cfg Config, log *logger.Logger) (*DB, error) {
	if cfg.ConnInfo == "" {
		return nil, fmt.Errorf("persistence_manager.pg_conn_info is required")
	}

	gormLog := gormlogger.New(
		&gormLogAdapter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.ConnInfo), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&KeepAlive{},
		&IndiCall{},
		&IndiCallStatusChange{},
		&IndiCallPtt{},
		&GroupCall{},
		&GroupCallStatusChange{},
		&GroupCallPtt{},
		&VoiceIndiCall{},
		&VoiceGroupCall{},
		&SDSStatus{},
		&SDSData{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("database initialized")

	return &DB{
		db:     db,
		logger: log,
	}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying GORM database instance.
func (d *DB) GetDB() *gorm.DB {
	return d.db
}

// gormLogAdapter adapts our logger to GORM's logger interface.
type gormLogAdapter struct {
	log *logger.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}
