package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/solar-kit-sizing/internal/api/http"
	"github.com/i474232898/solar-kit-sizing/internal/metrics"
	"github.com/i474232898/solar-kit-sizing/internal/scheduler"
	"github.com/i474232898/solar-kit-sizing/internal/solar"
	"github.com/i474232898/solar-kit-sizing/internal/store"
)

var (
	seedFile          string
	seedEquipmentFile string

	sizeLat         float64
	sizeLon         float64
	sizeConsumption float64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the irradiance refresh scheduler",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load panel models and equipment from files into the catalogs",
	RunE:  runSeed,
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Size one site against the stored catalog and print the result as JSON",
	RunE:  runSize,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()
	a, err := buildApp(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	defer a.close()

	// Scheduler that periodically refreshes irradiance for stored kits.
	sched := scheduler.New(cfg.RefreshInterval, a.service, logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	server := httpapi.NewApp(a.service, collector, logger.Named("http"))

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := server.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("error during shutdown", zap.Error(err))
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(cmd.Context()); err != nil {
		return err
	}

	// Seeding only touches the catalogs, so the service gets no irradiance source.
	svc := solar.NewService(nil, db, db, solar.WithEquipment(db, db), solar.WithLogger(logger))

	if seedFile != "" {
		panels, err := store.LoadPanelsFromFile(seedFile)
		if err != nil {
			return err
		}
		n, err := svc.BulkCreatePanels(cmd.Context(), panels)
		if err != nil {
			return err
		}
		total, err := db.CountPanels(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("panel catalog seeded",
			zap.String("file", seedFile),
			zap.Int("read", len(panels)),
			zap.Int("inserted", n),
			zap.Int("catalogSize", total))
	}

	if seedEquipmentFile != "" {
		items, err := store.LoadEquipmentFromFile(seedEquipmentFile)
		if err != nil {
			return err
		}
		n, err := svc.BulkCreateEquipment(cmd.Context(), items)
		if err != nil {
			return err
		}
		logger.Info("equipment catalog seeded",
			zap.String("file", seedEquipmentFile),
			zap.Int("read", len(items)),
			zap.Int("inserted", n))
	}
	return nil
}

func runSize(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.HTTPTimeout)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.service.Size(ctx, solar.SiteProfile{
		Latitude:              sizeLat,
		Longitude:             sizeLon,
		MonthlyConsumptionKwh: sizeConsumption,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
