package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/demandcast/backend/internal/engine"
	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/scenario"
	"github.com/demandcast/backend/internal/sources"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/logger"
)

var (
	scenarioName       string
	scenarioDays       int
	scenarioSeed       int64
	scenarioPrice      float64
	scenarioElasticity float64
	scenarioMultiplier float64
	scenarioBoost      float64
	scenarioEconomic   float64
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run a what-if scenario against the baseline forecast",
	Long: `Forecasts the series, applies the requested what-if adjustments on top
of the baseline and prints the adjusted forecast with its impact
analysis as JSON.

Example:
  go run ./cmd/forecast scenario --name promo --demand-multiplier 1.2
  go run ./cmd/forecast scenario --price-change 0.10 --elasticity -0.8`,
	RunE: runScenario,
}

func init() {
	scenarioCmd.Flags().StringVar(&scenarioName, "name", "", "scenario name")
	scenarioCmd.Flags().IntVar(&scenarioDays, "days", 180, "length of the demo series in days")
	scenarioCmd.Flags().Int64Var(&scenarioSeed, "seed", 7, "demo series RNG seed")
	scenarioCmd.Flags().Float64Var(&scenarioPrice, "price-change", 0, "fractional price move, e.g. 0.10 for +10%")
	scenarioCmd.Flags().Float64Var(&scenarioElasticity, "elasticity", 0, "demand response per unit price change (default -0.5)")
	scenarioCmd.Flags().Float64Var(&scenarioMultiplier, "demand-multiplier", 0, "flat demand multiplier, e.g. 1.2")
	scenarioCmd.Flags().Float64Var(&scenarioBoost, "seasonal-boost", 0, "decaying promotional lift, e.g. 0.3")
	scenarioCmd.Flags().Float64Var(&scenarioEconomic, "economic-impact", 0, "flat fractional shift, e.g. -0.05")
	rootCmd.AddCommand(scenarioCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	srcs := sources.Enabled(cfg.Sources, log)
	eng, err := engine.New(cfg, srcs, models.Default(), log)
	if err != nil {
		return err
	}

	sc := scenario.Scenario{
		Name:             scenarioName,
		PriceChange:      scenarioPrice,
		PriceElasticity:  scenarioElasticity,
		DemandMultiplier: scenarioMultiplier,
		SeasonalBoost:    scenarioBoost,
		EconomicImpact:   scenarioEconomic,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := eng.RunScenario(ctx, demoSeries(scenarioDays, scenarioSeed), sc)
	if err != nil {
		return fmt.Errorf("scenario run failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
