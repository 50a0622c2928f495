package models

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/demandcast/backend/internal/contracts"
)

// KNN is a feature-consuming k-nearest-neighbour regressor over
// standardized feature vectors. Importance is estimated by permutation
// with a fixed seed so repeated explains are identical.
type KNN struct {
	k int

	fitted bool
	names  []string
	means  []float64
	stds   []float64
	X      [][]float64
	y      []float64
	last   []float64
}

// NewKNN creates an unfitted model averaging the k nearest neighbours.
func NewKNN(k int) *KNN { return &KNN{k: k} }

// ID implements contracts.ForecastModel.
func (m *KNN) ID() string { return "knn" }

// Kind implements contracts.ForecastModel.
func (m *KNN) Kind() contracts.ModelKind { return contracts.KindFeatureConsuming }

// Fit stores the standardized training set.
func (m *KNN) Fit(ctx context.Context, table *contracts.FeatureTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.k <= 0 {
		return fmt.Errorf("knn neighbour count must be positive, got %d", m.k)
	}

	n := len(table.Rows)
	if n < minTrainRows || n <= m.k {
		return fmt.Errorf("knn needs more than %d rows, got %d", maxInt(minTrainRows-1, m.k), n)
	}
	if len(table.Names) == 0 {
		return fmt.Errorf("knn needs at least one feature")
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

	m.X = X
	m.y = y
	m.last = X[n-1]
	m.fitted = true
	return nil
}

// Predict averages the targets of the neighbours closest to the last
// observed feature vector, held constant across the horizon.
func (m *KNN) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("knn is not fitted")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	point := m.predictVec(m.last)
	preds := make([]float64, horizon)
	for i := range preds {
		preds[i] = point
	}
	return preds, nil
}

// Backtest implements contracts.ForecastModel.
func (m *KNN) Backtest(ctx context.Context, table *contracts.FeatureTable, holdout int) (float64, error) {
	return holdoutError(ctx, NewKNN(m.k), table, holdout)
}

// FeatureImportance implements contracts.FeatureImporter by permutation:
// shuffle one column at a time and measure the increase in training error.
func (m *KNN) FeatureImportance() map[string]float64 {
	if !m.fitted {
		return nil
	}

	baseline := m.trainError(nil, nil)
	rng := rand.New(rand.NewSource(42))

	raw := make(map[string]float64, len(m.names))
	total := 0.0
	for j, name := range m.names {
		perm := rng.Perm(len(m.X))
		increase := m.trainError(perm, []int{j}) - baseline
		if increase < 0 {
			increase = 0
		}
		raw[name] = increase
		total += increase
	}

	if total == 0 {
		return map[string]float64{}
	}
	for name := range raw {
		raw[name] /= total
	}
	return raw
}

// trainError computes mean squared error over the training rows, optionally
// permuting the given columns with the row order perm.
func (m *KNN) trainError(perm []int, cols []int) float64 {
	var sum float64
	vec := make([]float64, len(m.names))

	for i := range m.X {
		copy(vec, m.X[i])
		if perm != nil {
			for _, j := range cols {
				vec[j] = m.X[perm[i]][j]
			}
		}
		diff := m.predictVecExcluding(vec, i) - m.y[i]
		sum += diff * diff
	}
	return sum / float64(len(m.X))
}

func (m *KNN) predictVec(v []float64) float64 {
	return m.predictVecExcluding(v, -1)
}

// predictVecExcluding averages the k nearest neighbours, skipping one row
// index (used to keep a training row from matching itself).
func (m *KNN) predictVecExcluding(v []float64, exclude int) float64 {
	type neighbour struct {
		dist float64
		idx  int
	}

	neighbours := make([]neighbour, 0, len(m.X))
	for i := range m.X {
		if i == exclude {
			continue
		}
		var d float64
		for j := range v {
			diff := v[j] - m.X[i][j]
			d += diff * diff
		}
		neighbours = append(neighbours, neighbour{dist: d, idx: i})
	}

	sort.Slice(neighbours, func(a, b int) bool {
		if neighbours[a].dist != neighbours[b].dist {
			return neighbours[a].dist < neighbours[b].dist
		}
		return neighbours[a].idx < neighbours[b].idx
	})

	k := m.k
	if k > len(neighbours) {
		k = len(neighbours)
	}

	var sum float64
	for _, nb := range neighbours[:k] {
		sum += m.y[nb.idx]
	}
	return sum / float64(k)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
