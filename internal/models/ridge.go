package models

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/demandcast/backend/internal/contracts"
)

// Ridge is a feature-consuming L2-regularized linear regression solved via
// the normal equations. Features are standardized at fit time so the
// coefficient magnitudes double as importance scores.
type Ridge struct {
	lambda float64

	fitted  bool
	names   []string
	means   []float64
	stds    []float64
	yMean   float64
	coefs   []float64
	lastVec []float64
}

// NewRidge creates an unfitted ridge model with the given L2 penalty.
func NewRidge(lambda float64) *Ridge { return &Ridge{lambda: lambda} }

// ID implements contracts.ForecastModel.
func (m *Ridge) ID() string { return "ridge" }

// Kind implements contracts.ForecastModel.
func (m *Ridge) Kind() contracts.ModelKind { return contracts.KindFeatureConsuming }

// Fit solves (X'X + lambda*I) beta = X'y over standardized, centered data.
func (m *Ridge) Fit(ctx context.Context, table *contracts.FeatureTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n := len(table.Rows)
	p := len(table.Names)
	if n < minTrainRows {
		return fmt.Errorf("ridge needs at least %d rows, got %d", minTrainRows, n)
	}
	if p == 0 {
		return fmt.Errorf("ridge needs at least one feature")
	}

	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range table.Rows {
		X[i] = table.Vector(i)
		y[i] = table.Rows[i].Target
	}

	m.names = append([]string(nil), table.Names...)
	m.means, m.stds = columnStats(X)
	standardize(X, m.means, m.stds)

	m.yMean = 0
	for _, v := range y {
		m.yMean += v
	}
	m.yMean /= float64(n)

	// Normal equations over centered target.
	xtx := make([][]float64, p)
	xty := make([]float64, p)
	for j := 0; j < p; j++ {
		xtx[j] = make([]float64, p)
	}
	for i := 0; i < n; i++ {
		yc := y[i] - m.yMean
		for j := 0; j < p; j++ {
			xty[j] += X[i][j] * yc
			for k := j; k < p; k++ {
				xtx[j][k] += X[i][j] * X[i][k]
			}
		}
	}
	for j := 0; j < p; j++ {
		for k := 0; k < j; k++ {
			xtx[j][k] = xtx[k][j]
		}
		xtx[j][j] += m.lambda
	}

	coefs, err := solveLinearSystem(xtx, xty)
	if err != nil {
		return fmt.Errorf("ridge solve failed: %w", err)
	}
	m.coefs = coefs

	m.lastVec = table.LastVector()
	m.fitted = true
	return nil
}

// Predict applies the fitted coefficients to the last observed feature
// vector, held constant across the horizon.
func (m *Ridge) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("ridge is not fitted")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	point := m.yMean
	for j, v := range m.lastVec {
		point += m.coefs[j] * standardizeValue(v, m.means[j], m.stds[j])
	}

	preds := make([]float64, horizon)
	for i := range preds {
		preds[i] = point
	}
	return preds, nil
}

// Backtest implements contracts.ForecastModel.
func (m *Ridge) Backtest(ctx context.Context, table *contracts.FeatureTable, holdout int) (float64, error) {
	return holdoutError(ctx, NewRidge(m.lambda), table, holdout)
}

// FeatureImportance implements contracts.FeatureImporter: absolute
// standardized coefficients, normalized to sum to 1.
func (m *Ridge) FeatureImportance() map[string]float64 {
	if !m.fitted {
		return nil
	}

	total := 0.0
	for _, c := range m.coefs {
		total += math.Abs(c)
	}
	if total == 0 {
		return map[string]float64{}
	}

	out := make(map[string]float64, len(m.names))
	for j, name := range m.names {
		out[name] = math.Abs(m.coefs[j]) / total
	}
	return out
}

type ridgeState struct {
	Lambda float64   `json:"lambda"`
	Names  []string  `json:"names"`
	Means  []float64 `json:"means"`
	Stds   []float64 `json:"stds"`
	YMean  float64   `json:"y_mean"`
	Coefs  []float64 `json:"coefs"`
}

// MarshalState implements contracts.StateMarshaler.
func (m *Ridge) MarshalState() ([]byte, error) {
	if !m.fitted {
		return nil, fmt.Errorf("ridge is not fitted")
	}
	return json.Marshal(ridgeState{
		Lambda: m.lambda,
		Names:  m.names,
		Means:  m.means,
		Stds:   m.stds,
		YMean:  m.yMean,
		Coefs:  m.coefs,
	})
}

// columnStats computes per-column mean and standard deviation.
func columnStats(X [][]float64) (means, stds []float64) {
	n := len(X)
	p := len(X[0])
	means = make([]float64, p)
	stds = make([]float64, p)

	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			means[j] += X[i][j]
		}
		means[j] /= float64(n)

		for i := 0; i < n; i++ {
			d := X[i][j] - means[j]
			stds[j] += d * d
		}
		stds[j] = math.Sqrt(stds[j] / float64(n))
	}
	return means, stds
}

func standardize(X [][]float64, means, stds []float64) {
	for i := range X {
		for j := range X[i] {
			X[i][j] = standardizeValue(X[i][j], means[j], stds[j])
		}
	}
}

// standardizeValue leaves constant columns at zero rather than dividing by
// a zero deviation.
func standardizeValue(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}

// solveLinearSystem solves Ax = b by Gaussian elimination with partial
// pivoting. A is modified in place.
func solveLinearSystem(A [][]float64, b []float64) ([]float64, error) {
	n := len(A)
	x := append([]float64(nil), b...)

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(A[r][col]) > math.Abs(A[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(A[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		A[col], A[pivot] = A[pivot], A[col]
		x[col], x[pivot] = x[pivot], x[col]

		for r := col + 1; r < n; r++ {
			factor := A[r][col] / A[col][col]
			for c := col; c < n; c++ {
				A[r][c] -= factor * A[col][c]
			}
			x[r] -= factor * x[col]
		}
	}

	for col := n - 1; col >= 0; col-- {
		for c := col + 1; c < n; c++ {
			x[col] -= A[col][c] * x[c]
		}
		x[col] /= A[col][col]
	}
	return x, nil
}
