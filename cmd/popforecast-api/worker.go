package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/urbanlab/popforecast/internal/api_server"
	"github.com/urbanlab/popforecast/internal/client"
	"github.com/urbanlab/popforecast/internal/jobs"
	"github.com/urbanlab/popforecast/internal/restorator"
	"github.com/urbanlab/popforecast/internal/service"
	"github.com/urbanlab/popforecast/internal/store"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the pipeline workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		zap.S().Info("Starting worker service")
		defer zap.S().Info("Worker service stopped")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

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

		pool, err := apiserver.NewJobPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("creating job pool: %w", err)
		}
		defer pool.Close()

		urban := client.NewUrbanClient(client.UrbanConfig{
			BaseURL:             cfg.Service.UrbanAPI.BaseURL,
			APIKey:              cfg.Service.UrbanAPI.APIKey,
			Timeout:             cfg.Service.UrbanAPI.Timeout,
			PopulationIndicator: cfg.Service.UrbanAPI.PopulationIndicator,
			PopulationValueType: cfg.Service.UrbanAPI.PopulationValueType,
			HouseTypeID:         cfg.Service.UrbanAPI.HouseTypeID,
			BindConcurrency:     cfg.Service.UrbanAPI.BindPopulationConcurrency,
		})
		socdemo := client.NewSocDemoClient(client.SocDemoConfig{
			BaseURL:          cfg.Service.SocDemoAPI.BaseURL,
			APIKey:           cfg.Service.SocDemoAPI.APIKey,
			Timeout:          cfg.Service.SocDemoAPI.Timeout,
			PyramidIndicator: cfg.Service.SocDemoAPI.PyramidIndicator,
		})
		saving := client.NewSavingClient(client.SavingConfig{
			BaseURL:            cfg.Service.SavingAPI.BaseURL,
			APIKey:             cfg.Service.SavingAPI.APIKey,
			Timeout:            cfg.Service.SavingAPI.Timeout,
			PublishChunkSize:   cfg.Service.SavingAPI.PublishChunkSize,
			PublishConcurrency: cfg.Service.SavingAPI.PublishConcurrency,
			DeleteConcurrency:  cfg.Service.SavingAPI.DeleteConcurrency,
		})

		pipeline := service.NewPopulationService(urban, socdemo, saving,
			restorator.NewEngine(), dataStore.Lease(), service.PopulationConfig{
				DivideDBPath:       cfg.Service.Restorator.DivideDBPath,
				ForecastWorkingDir: cfg.Service.Restorator.ForecastWorkingDir,
				FertilityBegin:     cfg.Service.Restorator.FertilityBegin,
				FertilityEnd:       cfg.Service.Restorator.FertilityEnd,
			})

		queue, err := jobs.NewWorkerClient(pool, pipeline, cfg.Service.Jobs.MaxWorkers, cfg.Service.Jobs.Timeout)
		if err != nil {
			return fmt.Errorf("creating job client: %w", err)
		}
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("starting job client: %w", err)
		}
		zap.S().Named("worker").Infof("Processing jobs with %d workers", cfg.Service.Jobs.MaxWorkers)

		<-ctx.Done()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := queue.Stop(stopCtx); err != nil {
			zap.S().Named("worker").Warnw("failed to stop job client", "error", err)
		}
		return nil
	},
}
