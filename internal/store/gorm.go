package store

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig carries the connection parameters; it mirrors the database
// section of the service configuration without importing it.
type DBConfig struct {
	Hostname string
	Port     string
	Name     string
	User     string
	Password string
}

// InitDB opens the Postgres connection shared by the lease store. The
// job queue keeps its own pgx pool on the same database.
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s",
		cfg.Hostname,
		cfg.User,
		cfg.Password,
		cfg.Port,
	)
	if cfg.Name != "" {
		dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Name)
	}

	newDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to connect database: %v", err)
		return nil, err
	}

	sqlDB, err := newDB.DB()
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to configure connections: %v", err)
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return newDB, nil
}
