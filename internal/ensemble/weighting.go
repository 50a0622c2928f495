package ensemble

import (
	"sort"

	"github.com/demandcast/backend/internal/contracts"
)

// InverseError weights each surviving model inversely to its backtest
// error: lower error, higher weight, normalized to sum to 1. The default
// strategy; alternatives (stacking, online reweighting) plug in behind
// contracts.WeightingStrategy without touching the combiner.
type InverseError struct {
	// Epsilon guards against division by zero for a perfect backtest.
	Epsilon float64
}

// NewInverseError creates the default weighting strategy.
func NewInverseError() *InverseError {
	return &InverseError{Epsilon: 1e-8}
}

// Weights implements contracts.WeightingStrategy.
func (s *InverseError) Weights(backtestErrors map[string]float64) contracts.EnsembleWeights {
	if len(backtestErrors) == 0 {
		return contracts.EnsembleWeights{}
	}

	ids := make([]string, 0, len(backtestErrors))
	for id := range backtestErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Sum in sorted id order so repeated runs normalize identically.
	weights := make(contracts.EnsembleWeights, len(backtestErrors))
	total := 0.0
	for _, id := range ids {
		inv := 1.0 / (backtestErrors[id] + s.Epsilon)
		weights[id] = inv
		total += inv
	}
	for _, id := range ids {
		weights[id] /= total
	}
	return weights
}
