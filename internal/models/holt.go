package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/demandcast/backend/internal/contracts"
)

// Holt is a statistical model applying Holt's double exponential smoothing
// (level + trend) to the raw target series.
type Holt struct {
	alpha float64
	beta  float64

	fitted bool
	level  float64
	trend  float64
}

// NewHolt creates an unfitted Holt model with the given smoothing factors.
func NewHolt(alpha, beta float64) *Holt {
	return &Holt{alpha: alpha, beta: beta}
}

// ID implements contracts.ForecastModel.
func (m *Holt) ID() string { return "holt" }

// Kind implements contracts.ForecastModel.
func (m *Holt) Kind() contracts.ModelKind { return contracts.KindStatistical }

// Fit runs the smoothing recursion over the target series.
func (m *Holt) Fit(ctx context.Context, table *contracts.FeatureTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.alpha <= 0 || m.alpha >= 1 || m.beta <= 0 || m.beta >= 1 {
		return fmt.Errorf("holt smoothing factors must be in (0, 1): alpha=%v beta=%v", m.alpha, m.beta)
	}

	y := targets(table)
	if len(y) < minTrainRows {
		return fmt.Errorf("holt needs at least %d points, got %d", minTrainRows, len(y))
	}

	level := y[0]
	trend := y[1] - y[0]
	for _, v := range y[1:] {
		prevLevel := level
		level = m.alpha*v + (1-m.alpha)*(level+trend)
		trend = m.beta*(level-prevLevel) + (1-m.beta)*trend
	}

	m.level = level
	m.trend = trend
	m.fitted = true
	return nil
}

// Predict extrapolates the smoothed level and trend, clamped at zero.
func (m *Holt) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("holt is not fitted")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		p := m.level + m.trend*float64(i+1)
		if p < 0 {
			p = 0
		}
		preds[i] = p
	}
	return preds, nil
}

// Backtest implements contracts.ForecastModel.
func (m *Holt) Backtest(ctx context.Context, table *contracts.FeatureTable, holdout int) (float64, error) {
	return holdoutError(ctx, NewHolt(m.alpha, m.beta), table, holdout)
}

type holtState struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Level float64 `json:"level"`
	Trend float64 `json:"trend"`
}

// MarshalState implements contracts.StateMarshaler.
func (m *Holt) MarshalState() ([]byte, error) {
	if !m.fitted {
		return nil, fmt.Errorf("holt is not fitted")
	}
	return json.Marshal(holtState{Alpha: m.alpha, Beta: m.beta, Level: m.level, Trend: m.trend})
}
