package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/demandcast/backend/internal/engine"
	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/sources"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/logger"
)

var (
	evaluateDays     int
	evaluateSeed     int64
	evaluateFraction float64
	evaluateSplits   int
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score each model with a rolling backtest",
	Long: `Runs a rolling out-of-sample backtest over the enriched series and
prints each model's mean and standard deviation of MAE across splits.

Example:
  go run ./cmd/forecast evaluate --splits 3 --test-fraction 0.2`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().IntVar(&evaluateDays, "days", 180, "length of the demo series in days")
	evaluateCmd.Flags().Int64Var(&evaluateSeed, "seed", 7, "demo series RNG seed")
	evaluateCmd.Flags().Float64Var(&evaluateFraction, "test-fraction", 0.2, "fraction of rows held out per split")
	evaluateCmd.Flags().IntVar(&evaluateSplits, "splits", 3, "number of rolling splits")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summaries, err := eng.Evaluate(ctx, demoSeries(evaluateDays, evaluateSeed), evaluateFraction, evaluateSplits)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	ids := make([]string, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := summaries[id]
		fmt.Printf("%-16s mean MAE %8.3f  std %8.3f  (%d splits)\n", id, s.MeanMAE, s.StdMAE, s.Splits)
	}
	return nil
}
