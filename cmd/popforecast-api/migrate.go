package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/urbanlab/popforecast/internal/api_server"
	"github.com/urbanlab/popforecast/internal/store"
	"github.com/urbanlab/popforecast/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		zap.S().Info("Migrating database")
		defer zap.S().Info("Db migrated")

		db, err := store.InitDB(store.DBConfig{
			Hostname: cfg.Database.Hostname,
			Port:     cfg.Database.Port,
			Name:     cfg.Database.Name,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}
		dataStore := store.NewStore(db)
		defer dataStore.Close()

		ctx := context.Background()
		pool, err := apiserver.NewJobPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("creating job pool: %w", err)
		}
		defer pool.Close()

		return migrations.MigrateStore(db, cfg.Service.MigrationFolder, pool)
	},
}
