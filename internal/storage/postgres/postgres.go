// Package postgres implements the storage.Backend interface on PostgreSQL
// through the shared GORM queue writer.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/internal/database"
	gormstorage "github.com/OCAP2/animscope/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the postgres storage backend.
type Dependencies struct {
	Config config.DBConfig
	// DB skips dialing when set, mainly for tests.
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend embeds the GORM backend and owns the postgres connection.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new postgres storage backend. Nothing is dialed until Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init connects if no DB was injected, then initializes the embedded GORM
// backend.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
		b.deps.Logger.Info("Connected to postgres", "host", b.deps.Config.Host, "database", b.deps.Config.Database)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     b.deps.DB,
		Logger: b.deps.Logger,
	})
	return b.Backend.Init()
}

// Close flushes the embedded backend and closes the pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
