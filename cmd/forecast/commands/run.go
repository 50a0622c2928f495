package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/internal/engine"
	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/sources"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/logger"
)

var (
	runDemo     bool
	runDemoDays int
	runSeed     int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the forecast pipeline once",
	Long: `Runs the full pipeline: enrichment, feature synthesis, ensemble
training, uncertainty quantification and explanation, then prints the
ForecastResult as JSON.

The historical series comes from the demo generator; real deployments
feed the engine through the data-ingestion collaborator instead.

Example:
  go run ./cmd/forecast run --demo --days 180`,
	RunE: runForecast,
}

func init() {
	runCmd.Flags().BoolVar(&runDemo, "demo", true, "use a generated demo series")
	runCmd.Flags().IntVar(&runDemoDays, "days", 180, "length of the demo series in days")
	runCmd.Flags().Int64Var(&runSeed, "seed", 7, "demo series RNG seed")
	rootCmd.AddCommand(runCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
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

	series := demoSeries(runDemoDays, runSeed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := eng.Run(ctx, series)
	if err != nil {
		return fmt.Errorf("forecast run failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// demoSeries generates a deterministic daily demand series with trend,
// weekly seasonality and noise.
func demoSeries(days int, seed int64) contracts.Series {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	series := make(contracts.Series, days)
	for i := 0; i < days; i++ {
		ts := start.AddDate(0, 0, i)
		weekly := 20 * math.Sin(2*math.Pi*float64(ts.Weekday())/7)
		target := 200 + 0.5*float64(i) + weekly + rng.NormFloat64()*10
		if target < 0 {
			target = 0
		}
		series[i] = contracts.TimePoint{Timestamp: ts, Target: target}
	}
	return series
}
