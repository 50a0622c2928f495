// Package explain attributes the ensemble forecast to its contributing
// features, with provenance, and renders deterministic insight strings.
package explain

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
)

// topAttributions is how many features the insight layer talks about.
const topAttributions = 5

// Degradations carries the degraded-operation facts the pipeline observed,
// so a fallback-fed or partially-trained forecast is never presented as
// fully nominal.
type Degradations struct {
	FallbackSources []contracts.SourceID
	ExcludedModels  []string
	MergeWarnings   []string
}

// Engine computes feature attribution and insight strings.
type Engine struct {
	log zerolog.Logger
}

// New creates an explanation engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "explain.engine").Logger()}
}

// Explain aggregates per-model feature importance by the same ensemble
// weights used for the point forecast. Every attribution carries its
// provenance tag. Insights are deterministic templates over the computed
// attributions and observed degradations; no claims beyond the numbers.
func (e *Engine) Explain(trained []contracts.TrainedModel, weights contracts.EnsembleWeights, table *contracts.FeatureTable, points []float64, deg Degradations) ([]contracts.Attribution, []string) {
	attributions := e.attribute(trained, weights, table)
	insights := e.insights(attributions, trained, weights, points, deg)

	e.log.Debug().
		Int("attributions", len(attributions)).
		Int("insights", len(insights)).
		Msg("explanation generated")

	return attributions, insights
}

func (e *Engine) attribute(trained []contracts.TrainedModel, weights contracts.EnsembleWeights, table *contracts.FeatureTable) []contracts.Attribution {
	agg := map[string]float64{}
	for _, tm := range trained {
		importer, ok := tm.Model.(contracts.FeatureImporter)
		if !ok {
			continue // statistical models carry no per-feature importance
		}
		for name, imp := range importer.FeatureImportance() {
			agg[name] += weights[tm.ModelID] * imp
		}
	}

	names := make([]string, 0, len(agg))
	for name := range agg {
		names = append(names, name)
	}
	sort.Strings(names)

	// Normalize in sorted name order so repeated explains are identical.
	total := 0.0
	for _, name := range names {
		total += agg[name]
	}
	if total == 0 {
		return nil
	}

	attributions := make([]contracts.Attribution, 0, len(agg))
	for _, name := range names {
		attributions = append(attributions, contracts.Attribution{
			Feature:      name,
			Contribution: agg[name] / total,
			Provenance:   table.Provenance[name].Tag(),
		})
	}

	sort.Slice(attributions, func(i, j int) bool {
		if attributions[i].Contribution != attributions[j].Contribution {
			return attributions[i].Contribution > attributions[j].Contribution
		}
		return attributions[i].Feature < attributions[j].Feature
	})

	if len(attributions) > topAttributions {
		attributions = attributions[:topAttributions]
	}
	return attributions
}

func (e *Engine) insights(attributions []contracts.Attribution, trained []contracts.TrainedModel, weights contracts.EnsembleWeights, points []float64, deg Degradations) []string {
	var insights []string

	// Trend and volatility, straight from the point forecast.
	if len(points) > 1 {
		var trend float64
		for i := 1; i < len(points); i++ {
			trend += points[i] - points[i-1]
		}
		trend /= float64(len(points) - 1)

		switch {
		case trend > 0:
			insights = append(insights, fmt.Sprintf("Forecast shows an upward trend of %.2f per step over %d steps", trend, len(points)))
		case trend < 0:
			insights = append(insights, fmt.Sprintf("Forecast shows a downward trend of %.2f per step over %d steps", trend, len(points)))
		default:
			insights = append(insights, "Forecast shows a flat pattern over the horizon")
		}

		mean, std := meanStd(points)
		if mean > 0 {
			cv := std / mean
			switch {
			case cv > 0.2:
				insights = append(insights, fmt.Sprintf("High forecast volatility (cv %.2f); monitor closely", cv))
			case cv > 0.1:
				insights = append(insights, fmt.Sprintf("Moderate forecast volatility (cv %.2f)", cv))
			default:
				insights = append(insights, fmt.Sprintf("Stable forecast with low volatility (cv %.2f)", cv))
			}
		}
	}

	// Top driver and the external share of attributed weight.
	if len(attributions) > 0 {
		top := attributions[0]
		insights = append(insights, fmt.Sprintf("Top driver %s (%s) accounts for %.0f%% of attributed forecast weight",
			top.Feature, top.Provenance, top.Contribution*100))

		external := 0.0
		for _, a := range attributions {
			if a.Provenance != string(contracts.FeatureHistorical) {
				external += a.Contribution
			}
		}
		if external > 0 {
			insights = append(insights, fmt.Sprintf("External signals account for %.0f%% of the top attributed forecast weight", external*100))
		}
	}

	// Model mix.
	statistical := 0.0
	for _, tm := range trained {
		if tm.Kind == contracts.KindStatistical {
			statistical += weights[tm.ModelID]
		}
	}
	if statistical > 0 {
		insights = append(insights, fmt.Sprintf("Pure time-series models carry %.0f%% of the ensemble weight", statistical*100))
	}

	// Degradations are always reported, never silently absorbed.
	for _, src := range deg.FallbackSources {
		insights = append(insights, fmt.Sprintf("Degraded enrichment: source %q returned fallback data; its derived features reflect synthetic values", src))
	}
	for _, id := range deg.ExcludedModels {
		insights = append(insights, fmt.Sprintf("Model %q was excluded after a training failure; forecast combines the %d remaining models", id, len(trained)))
	}
	insights = append(insights, deg.MergeWarnings...)

	return insights
}

func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}
