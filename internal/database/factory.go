package database

import (
	"fmt"
	"os"
	"path/filepath"

	"collab-go/internal/config"
)

// NewDatabaseFromConfig opens the store selected by the database config type.
// In-memory databases are migrated on open since they start empty every time.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, nodeID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, nodeID+".db"))
	case "memory":
		db, err := NewSQLiteDatabase(memoryPath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
