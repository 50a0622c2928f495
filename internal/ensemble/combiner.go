// Package ensemble trains heterogeneous forecast models against one
// feature table and combines their predictions into a single
// performance-weighted forecast. Individual model failure is tolerated;
// only total failure crosses this boundary.
package ensemble

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
)

// Combiner holds the registry of trained models and the weighting logic.
type Combiner struct {
	prototypes []contracts.ForecastModel
	strategy   contracts.WeightingStrategy
	holdout    int
	fitTimeout time.Duration
	log        zerolog.Logger

	trained   []contracts.TrainedModel
	weights   contracts.EnsembleWeights
	residuals []float64
	excluded  []string
}

// New creates a combiner over the given model prototypes. The holdout is
// the number of trailing rows reserved for out-of-sample weighting.
func New(prototypes []contracts.ForecastModel, holdout int, fitTimeout time.Duration, log zerolog.Logger) *Combiner {
	return &Combiner{
		prototypes: prototypes,
		strategy:   NewInverseError(),
		holdout:    holdout,
		fitTimeout: fitTimeout,
		log:        log.With().Str("component", "ensemble.combiner").Logger(),
	}
}

// WithStrategy swaps the weighting strategy.
func (c *Combiner) WithStrategy(s contracts.WeightingStrategy) *Combiner {
	c.strategy = s
	return c
}

// ValidateModels rejects duplicate model ids at configuration time.
func ValidateModels(prototypes []contracts.ForecastModel) error {
	seen := map[string]bool{}
	for _, m := range prototypes {
		if seen[m.ID()] {
			return &contracts.ConfigError{Field: "models", Reason: "duplicate model id " + m.ID()}
		}
		seen[m.ID()] = true
	}
	return nil
}

type fitOutcome struct {
	trained      *contracts.TrainedModel
	holdoutPreds []float64
	err          error
}

// Fit trains every model concurrently: backtest against the trailing
// holdout for the error metric, refit on the training prefix to capture
// holdout predictions for the residual estimate, then refit on the full
// table. Models that fail any step are excluded, not zero-weighted.
// Returns ErrEnsembleUnavailable when nothing survives.
func (c *Combiner) Fit(ctx context.Context, table *contracts.FeatureTable) error {
	n := len(table.Rows)
	if n < 2 {
		c.trained = nil
		c.weights = contracts.EnsembleWeights{}
		c.residuals = nil
		return contracts.ErrEnsembleUnavailable
	}
	holdout := c.holdout
	if holdout >= n {
		holdout = n / 5 // degenerate config, fall back to a 20% tail
	}
	if holdout < 1 {
		holdout = 1
	}

	train := table.Slice(0, n-holdout)
	actuals := make([]float64, holdout)
	for i := 0; i < holdout; i++ {
		actuals[i] = table.Rows[n-holdout+i].Target
	}

	outcomes := make([]fitOutcome, len(c.prototypes))

	var wg sync.WaitGroup
	for i, proto := range c.prototypes {
		wg.Add(1)
		go func(i int, m contracts.ForecastModel) {
			defer wg.Done()

			fitCtx := ctx
			var cancel context.CancelFunc
			if c.fitTimeout > 0 {
				fitCtx, cancel = context.WithTimeout(ctx, c.fitTimeout)
				defer cancel()
			}

			outcomes[i] = c.fitOne(fitCtx, m, train, table, actuals)
		}(i, proto)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	c.trained = nil
	c.excluded = nil
	backtestErrors := map[string]float64{}
	holdoutPreds := map[string][]float64{}

	for i, out := range outcomes {
		id := c.prototypes[i].ID()
		if out.err != nil {
			c.excluded = append(c.excluded, id)
			c.log.Warn().
				Str("model", id).
				Err(&contracts.ModelFitError{ModelID: id, Err: out.err}).
				Msg("model excluded from ensemble")
			continue
		}
		c.trained = append(c.trained, *out.trained)
		backtestErrors[id] = out.trained.BacktestError
		holdoutPreds[id] = out.holdoutPreds
	}
	sort.Strings(c.excluded)

	if len(c.trained) == 0 {
		c.weights = contracts.EnsembleWeights{}
		c.residuals = nil
		return contracts.ErrEnsembleUnavailable
	}

	c.weights = c.strategy.Weights(backtestErrors)
	c.residuals = ensembleResiduals(actuals, holdoutPreds, c.weights)

	c.log.Info().
		Int("survivors", len(c.trained)).
		Int("excluded", len(c.excluded)).
		Interface("weights", c.weights).
		Msg("ensemble fit completed")

	return nil
}

// fitOne runs the per-model backtest/refit sequence. The model's own
// Backtest supplies the weighting error; the intermediate fit on the
// training prefix recovers the holdout predictions the residual estimate
// needs.
func (c *Combiner) fitOne(ctx context.Context, m contracts.ForecastModel, train, full *contracts.FeatureTable, actuals []float64) fitOutcome {
	mae, err := m.Backtest(ctx, full, len(actuals))
	if err != nil {
		return fitOutcome{err: err}
	}

	if err := m.Fit(ctx, train); err != nil {
		return fitOutcome{err: err}
	}

	preds, err := m.Predict(ctx, len(actuals))
	if err != nil {
		return fitOutcome{err: err}
	}

	if err := m.Fit(ctx, full); err != nil {
		return fitOutcome{err: err}
	}

	return fitOutcome{
		trained: &contracts.TrainedModel{
			ModelID:       m.ID(),
			Kind:          m.Kind(),
			Model:         m,
			BacktestError: mae,
			CreatedAt:     time.Now().UTC(),
		},
		holdoutPreds: preds,
	}
}

// Predict combines each surviving model's prediction into a single
// per-step weighted sum. A model whose predict fails at this point is
// dropped and the remaining weights renormalized.
func (c *Combiner) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if len(c.trained) == 0 {
		return nil, contracts.ErrEnsembleUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds := map[string][]float64{}
	weightTotal := 0.0
	for _, tm := range c.trained {
		p, err := tm.Model.Predict(ctx, horizon)
		if err != nil {
			c.log.Warn().Str("model", tm.ModelID).Err(err).Msg("model prediction failed, dropping from combination")
			continue
		}
		preds[tm.ModelID] = p
		weightTotal += c.weights[tm.ModelID]
	}

	if len(preds) == 0 || weightTotal == 0 {
		return nil, contracts.ErrEnsembleUnavailable
	}

	// Accumulate in sorted id order so repeated runs sum identically.
	combined := make([]float64, horizon)
	for _, id := range sortedIDs(preds) {
		w := c.weights[id] / weightTotal
		for i := 0; i < horizon; i++ {
			combined[i] += w * preds[id][i]
		}
	}
	return combined, nil
}

// Weights returns the current ensemble weights over surviving models.
func (c *Combiner) Weights() contracts.EnsembleWeights {
	out := make(contracts.EnsembleWeights, len(c.weights))
	for id, w := range c.weights {
		out[id] = w
	}
	return out
}

// Trained returns the surviving trained models.
func (c *Combiner) Trained() []contracts.TrainedModel { return c.trained }

// Residuals returns the out-of-sample ensemble residuals from the holdout,
// used by the uncertainty quantifier.
func (c *Combiner) Residuals() []float64 { return c.residuals }

// Excluded returns the ids of models excluded this cycle, sorted.
func (c *Combiner) Excluded() []string { return c.excluded }

// ensembleResiduals computes actual minus weighted holdout prediction.
func ensembleResiduals(actuals []float64, preds map[string][]float64, weights contracts.EnsembleWeights) []float64 {
	ids := sortedIDs(preds)
	residuals := make([]float64, len(actuals))
	for i := range actuals {
		var combined float64
		for _, id := range ids {
			combined += weights[id] * preds[id][i]
		}
		residuals[i] = actuals[i] - combined
	}
	return residuals
}

func sortedIDs(preds map[string][]float64) []string {
	ids := make([]string, 0, len(preds))
	for id := range preds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
