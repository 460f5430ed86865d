package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/i474232898/solar-kit-sizing/internal/config"
)

var (
	verbose bool

	logger *zap.Logger
	cfg    *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "solar-kit-sizing",
	Short: "Size residential solar arrays from site irradiance and a panel catalog",
	Long: `solar-kit-sizing estimates how many panels of each catalog model a site
needs to cover its monthly consumption, using monthly irradiance from
NREL PVWatts or NASA POWER.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML or JSON file with panel models")
	seedCmd.Flags().StringVarP(&seedEquipmentFile, "equipment", "e", "", "YAML or JSON file with inverters, batteries, structures, cables and protections")
	seedCmd.MarkFlagsOneRequired("file", "equipment")

	sizeCmd.Flags().Float64Var(&sizeLat, "lat", 0, "Site latitude in degrees")
	sizeCmd.Flags().Float64Var(&sizeLon, "lon", 0, "Site longitude in degrees")
	sizeCmd.Flags().Float64Var(&sizeConsumption, "consumption", 0, "Monthly consumption in kWh (required)")
	_ = sizeCmd.MarkFlagRequired("lat")
	_ = sizeCmd.MarkFlagRequired("lon")
	_ = sizeCmd.MarkFlagRequired("consumption")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(sizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
