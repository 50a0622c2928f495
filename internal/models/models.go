// Package models holds the built-in forecast model implementations.
// Statistical models consume only the raw target series; feature-consuming
// models train on the full feature table. Algorithm internals are pluggable
// behind contracts.ForecastModel.
package models

import (
	"context"
	"fmt"

	"github.com/demandcast/backend/internal/contracts"
)

// Default returns the built-in model set: two statistical, two
// feature-consuming.
func Default() []contracts.ForecastModel {
	return []contracts.ForecastModel{
		NewSeasonalTrend(),
		NewHolt(0.5, 0.3),
		NewRidge(1.0),
		NewKNN(5),
	}
}

// minTrainRows is the smallest table any model will fit on.
const minTrainRows = 14

// holdoutError is the shared backtest implementation: fit a fresh model on
// everything except the trailing holdout rows and score MAE on those rows.
// A single expanding-window split, matching how the ensemble weights were
// originally calibrated.
func holdoutError(ctx context.Context, fresh contracts.ForecastModel, table *contracts.FeatureTable, holdout int) (float64, error) {
	n := len(table.Rows)
	if holdout <= 0 {
		return 0, fmt.Errorf("holdout must be positive, got %d", holdout)
	}
	if n-holdout < minTrainRows {
		return 0, fmt.Errorf("insufficient data: %d rows, %d holdout", n, holdout)
	}

	train := table.Slice(0, n-holdout)
	if err := fresh.Fit(ctx, train); err != nil {
		return 0, err
	}

	preds, err := fresh.Predict(ctx, holdout)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < holdout; i++ {
		diff := preds[i] - table.Rows[n-holdout+i].Target
		if diff < 0 {
			diff = -diff
		}
		sum += diff
	}
	return sum / float64(holdout), nil
}

// targets extracts the raw target series from a feature table.
func targets(table *contracts.FeatureTable) []float64 {
	out := make([]float64, len(table.Rows))
	for i, row := range table.Rows {
		out[i] = row.Target
	}
	return out
}
