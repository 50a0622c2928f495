// Package engine wires the forecasting stages into one pipeline:
// enrichment, feature synthesis, ensemble training, uncertainty
// quantification and explanation.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/internal/enrich"
	"github.com/demandcast/backend/internal/ensemble"
	"github.com/demandcast/backend/internal/evaluation"
	"github.com/demandcast/backend/internal/explain"
	"github.com/demandcast/backend/internal/features"
	"github.com/demandcast/backend/internal/scenario"
	"github.com/demandcast/backend/internal/uncertainty"
	"github.com/demandcast/backend/pkg/config"
)

// Engine is a pure function of its inputs: repeated runs over the same
// series and configuration produce identical point forecasts.
type Engine struct {
	cfg          config.ForecastConfig
	sources      []contracts.SignalSource
	orchestrator *enrich.Orchestrator
	synthesizer  *features.Synthesizer
	prototypes   []contracts.ForecastModel
	quantifier   *uncertainty.Quantifier
	explainer    *explain.Engine
	evaluator    *evaluation.Evaluator
	log          zerolog.Logger
}

// New validates the configuration surface (duplicate source fields,
// duplicate model ids) and assembles the pipeline. Configuration errors
// surface here, before any fetch or fit.
func New(cfg *config.Config, srcs []contracts.SignalSource, prototypes []contracts.ForecastModel, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := enrich.ValidateSources(srcs); err != nil {
		return nil, err
	}
	if err := ensemble.ValidateModels(prototypes); err != nil {
		return nil, err
	}

	return &Engine{
		cfg:          cfg.Forecast,
		sources:      srcs,
		orchestrator: enrich.New(cfg.Sources.Timeout, log),
		synthesizer:  features.New(cfg.Forecast, log),
		prototypes:   prototypes,
		quantifier:   uncertainty.New(log),
		explainer:    explain.New(log),
		evaluator:    evaluation.New(log),
		log:          log.With().Str("component", "engine").Logger(),
	}, nil
}

// Run executes the full pipeline over one historical series and returns a
// single ForecastResult. Abort is all-or-nothing: on cancellation or
// ensemble failure no partial result is returned.
func (e *Engine) Run(ctx context.Context, series contracts.Series) (*contracts.ForecastResult, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("historical series is empty")
	}

	start := time.Now()

	dataset := e.orchestrator.Enrich(ctx, series, e.sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := e.synthesizer.Synthesize(dataset)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	combiner := ensemble.New(e.prototypes, e.cfg.HoldoutDays, e.cfg.FitTimeout, e.log)
	if err := combiner.Fit(ctx, table); err != nil {
		return nil, err
	}

	points, err := combiner.Predict(ctx, e.cfg.Horizon)
	if err != nil {
		return nil, err
	}

	intervals := e.quantifier.Quantify(points, combiner.Residuals(), e.cfg.ConfidenceLevels)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attributions, insights := e.explainer.Explain(
		combiner.Trained(),
		combiner.Weights(),
		table,
		points,
		explain.Degradations{
			FallbackSources: dataset.FallbackSources(),
			ExcludedModels:  combiner.Excluded(),
			MergeWarnings:   dataset.Warnings,
		},
	)

	result := &contracts.ForecastResult{
		Timestamps:   horizonTimestamps(series, e.cfg.Horizon),
		Points:       points,
		Intervals:    intervals,
		Attributions: attributions,
		Insights:     insights,
		ModelWeights: combiner.Weights(),
		GeneratedAt:  time.Now().UTC(),
	}

	e.log.Info().
		Int("horizon", e.cfg.Horizon).
		Int("models", len(combiner.Trained())).
		Dur("duration", time.Since(start)).
		Msg("forecast completed")

	return result, nil
}

// RunScenario forecasts the series, then applies a what-if adjustment on
// top of the baseline and measures its impact. The baseline run carries all
// the usual degradation handling; scenario math never touches the models.
func (e *Engine) RunScenario(ctx context.Context, series contracts.Series, sc scenario.Scenario) (*scenario.Result, error) {
	baseline, err := e.Run(ctx, series)
	if err != nil {
		return nil, err
	}

	result := scenario.Run(baseline.Points, sc)
	e.log.Info().
		Str("scenario", result.Name).
		Float64("avg_impact_pct", result.Impact.AveragePercent).
		Msg("scenario completed")
	return result, nil
}

// Evaluate scores every configured model with a rolling out-of-sample
// backtest over the enriched, feature-synthesized series.
func (e *Engine) Evaluate(ctx context.Context, series contracts.Series, testFraction float64, splits int) (map[string]evaluation.Summary, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("historical series is empty")
	}

	dataset := e.orchestrator.Enrich(ctx, series, e.sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := e.synthesizer.Synthesize(dataset)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.evaluator.RollingBacktest(ctx, e.prototypes, table, testFraction, splits)
}

// horizonTimestamps extends the series cadence one day at a time past its
// last observation.
func horizonTimestamps(series contracts.Series, horizon int) []time.Time {
	last := series[len(series)-1].Timestamp
	out := make([]time.Time, horizon)
	for i := 0; i < horizon; i++ {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}
