package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/demandcast/backend/internal/contracts"
)

// SeasonalTrend is a statistical model combining a least-squares linear
// trend with a weekly seasonal pattern estimated from recent history.
type SeasonalTrend struct {
	fitted    bool
	n         int
	lastValue float64
	slope     float64
	pattern   []float64
}

// NewSeasonalTrend creates an unfitted seasonal trend model.
func NewSeasonalTrend() *SeasonalTrend { return &SeasonalTrend{} }

// ID implements contracts.ForecastModel.
func (m *SeasonalTrend) ID() string { return "seasonal_trend" }

// Kind implements contracts.ForecastModel.
func (m *SeasonalTrend) Kind() contracts.ModelKind { return contracts.KindStatistical }

// Fit estimates the trend slope and the weekly pattern from the raw target
// series; the feature table's derived columns are ignored.
func (m *SeasonalTrend) Fit(ctx context.Context, table *contracts.FeatureTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	y := targets(table)
	if len(y) < minTrainRows {
		return fmt.Errorf("seasonal_trend needs at least %d points, got %d", minTrainRows, len(y))
	}

	m.n = len(y)
	m.lastValue = y[len(y)-1]
	m.slope = trendSlope(y)
	m.pattern = weeklyPattern(y)
	m.fitted = true
	return nil
}

// Predict extrapolates trend plus seasonality over the horizon. Forecasts
// are clamped at zero; demand cannot go negative.
func (m *SeasonalTrend) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("seasonal_trend is not fitted")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		trend := m.lastValue + m.slope*float64(i+1)
		seasonal := m.pattern[(m.n+i)%len(m.pattern)]
		p := trend + seasonal
		if p < 0 {
			p = 0
		}
		preds[i] = p
	}
	return preds, nil
}

// Backtest implements contracts.ForecastModel.
func (m *SeasonalTrend) Backtest(ctx context.Context, table *contracts.FeatureTable, holdout int) (float64, error) {
	return holdoutError(ctx, NewSeasonalTrend(), table, holdout)
}

type seasonalTrendState struct {
	N         int       `json:"n"`
	LastValue float64   `json:"last_value"`
	Slope     float64   `json:"slope"`
	Pattern   []float64 `json:"pattern"`
}

// MarshalState implements contracts.StateMarshaler.
func (m *SeasonalTrend) MarshalState() ([]byte, error) {
	if !m.fitted {
		return nil, fmt.Errorf("seasonal_trend is not fitted")
	}
	return json.Marshal(seasonalTrendState{
		N:         m.n,
		LastValue: m.lastValue,
		Slope:     m.slope,
		Pattern:   m.pattern,
	})
}

// trendSlope returns the least-squares slope of y against its index.
func trendSlope(y []float64) float64 {
	n := float64(len(y))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// weeklyPattern estimates per-weekday offsets from the last three weeks.
func weeklyPattern(y []float64) []float64 {
	if len(y) < 14 {
		return make([]float64, 7)
	}

	recent := y
	if len(recent) > 21 {
		recent = recent[len(recent)-21:]
	}

	var overall float64
	for _, v := range recent {
		overall += v
	}
	overall /= float64(len(recent))

	pattern := make([]float64, 7)
	for day := 0; day < 7; day++ {
		var sum float64
		count := 0
		for i := day; i < len(recent); i += 7 {
			sum += recent[i]
			count++
		}
		if count > 0 {
			pattern[day] = sum/float64(count) - overall
		}
	}
	return pattern
}
