// Package evaluation scores forecast models out of sample. It complements
// the ensemble's weighting pass with richer metrics (MAE, RMSE, MAPE) and a
// rolling multi-split backtest over the feature table.
package evaluation

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
)

// Metrics holds one model's out-of-sample scores. MAPE is a percentage and
// skips steps whose actual is zero; it is +Inf when every actual is zero.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// Summary aggregates a model's MAE across rolling backtest splits.
type Summary struct {
	MeanMAE float64 `json:"mean_mae"`
	StdMAE  float64 `json:"std_mae"`
	Splits  int     `json:"splits"`
}

// Evaluator scores models against held-out table rows.
type Evaluator struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Evaluator {
	return &Evaluator{log: log.With().Str("component", "evaluation").Logger()}
}

// Evaluate fits each model on everything but the trailing holdout rows and
// scores its holdout predictions. A model that fails to fit or predict is
// reported with infinite metrics rather than dropped, so every configured
// id appears in the output.
func (e *Evaluator) Evaluate(ctx context.Context, models []contracts.ForecastModel, table *contracts.FeatureTable, holdout int) (map[string]Metrics, error) {
	n := len(table.Rows)
	if holdout < 1 || holdout >= n {
		return nil, &contracts.ConfigError{Field: "evaluation.holdout", Reason: "holdout must be in [1, rows)"}
	}

	train := table.Slice(0, n-holdout)
	actuals := make([]float64, holdout)
	for i := 0; i < holdout; i++ {
		actuals[i] = table.Rows[n-holdout+i].Target
	}

	out := make(map[string]Metrics, len(models))
	for _, m := range models {
		preds, err := fitPredict(ctx, m, train, holdout)
		if err != nil {
			e.log.Warn().Str("model", m.ID()).Err(err).Msg("evaluation failed, recording infinite metrics")
			out[m.ID()] = Metrics{MAE: math.Inf(1), RMSE: math.Inf(1), MAPE: math.Inf(1)}
			continue
		}
		out[m.ID()] = score(actuals, preds)
	}
	return out, nil
}

// RollingBacktest scores each model over several expanding-window splits
// walking backward from the end of the table. Each split reserves the same
// test-sized tail; a split stops contributing once the remaining training
// prefix falls below the test size. A model that fails a split records an
// infinite MAE for it.
func (e *Evaluator) RollingBacktest(ctx context.Context, models []contracts.ForecastModel, table *contracts.FeatureTable, testFraction float64, splits int) (map[string]Summary, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, &contracts.ConfigError{Field: "evaluation.testFraction", Reason: "test fraction must be in (0, 1)"}
	}
	if splits < 1 {
		return nil, &contracts.ConfigError{Field: "evaluation.splits", Reason: "splits must be positive"}
	}

	n := len(table.Rows)
	testSamples := int(float64(n) * testFraction)
	if testSamples < 1 {
		return nil, &contracts.ConfigError{Field: "evaluation.testFraction", Reason: "table too small for the requested test fraction"}
	}
	stride := testSamples / splits
	if stride < 1 {
		stride = 1
	}

	scores := map[string][]float64{}
	for split := 0; split < splits; split++ {
		testEnd := n - split*stride
		testStart := testEnd - testSamples
		trainEnd := testStart
		if trainEnd < testSamples {
			break
		}

		train := table.Slice(0, trainEnd)
		actuals := make([]float64, testSamples)
		for i := range actuals {
			actuals[i] = table.Rows[testStart+i].Target
		}

		for _, m := range models {
			preds, err := fitPredict(ctx, m, train, testSamples)
			if err != nil {
				e.log.Warn().Str("model", m.ID()).Int("split", split).Err(err).Msg("backtest split failed")
				scores[m.ID()] = append(scores[m.ID()], math.Inf(1))
				continue
			}
			scores[m.ID()] = append(scores[m.ID()], score(actuals, preds).MAE)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	out := make(map[string]Summary, len(scores))
	for id, s := range scores {
		out[id] = summarize(s)
	}
	return out, nil
}

func fitPredict(ctx context.Context, m contracts.ForecastModel, train *contracts.FeatureTable, horizon int) ([]float64, error) {
	if err := m.Fit(ctx, train); err != nil {
		return nil, err
	}
	return m.Predict(ctx, horizon)
}

func score(actuals, preds []float64) Metrics {
	n := len(actuals)
	if len(preds) < n {
		n = len(preds)
	}

	var absSum, sqSum, pctSum float64
	pctN := 0
	for i := 0; i < n; i++ {
		diff := preds[i] - actuals[i]
		if diff < 0 {
			absSum -= diff
		} else {
			absSum += diff
		}
		sqSum += diff * diff
		if actuals[i] != 0 {
			pctSum += math.Abs(diff / actuals[i])
			pctN++
		}
	}

	m := Metrics{
		MAE:  absSum / float64(n),
		RMSE: math.Sqrt(sqSum / float64(n)),
		MAPE: math.Inf(1),
	}
	if pctN > 0 {
		m.MAPE = pctSum / float64(pctN) * 100
	}
	return m
}

// summarize reduces split MAEs to mean and population standard deviation.
func summarize(scores []float64) Summary {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))

	var sq float64
	for _, s := range scores {
		d := s - mean
		sq += d * d
	}
	return Summary{
		MeanMAE: mean,
		StdMAE:  math.Sqrt(sq / float64(len(scores))),
		Splits:  len(scores),
	}
}
