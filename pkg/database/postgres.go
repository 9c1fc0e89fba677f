package database

import (
	"fmt"
	"log"

	"advisor-backend/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresConnection opens the database and enables the pgvector extension.
func NewPostgresConnection(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	log.Printf("[Database] Connected to postgres")
	return db, nil
}

// SetVectorDimensions pins the embedding columns to the configured size.
// Reads and writes with a different size fail instead of returning nonsense rankings.
func SetVectorDimensions(db *gorm.DB, dims int, tables ...string) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range tables {
		stmt := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN embedding TYPE vector(%d)", table, dims)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to set %s embedding dimensions: %w", table, err)
		}
	}
	return nil
}
