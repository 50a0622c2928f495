package ensemble

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
)

// stubModel predicts a constant and can be scripted to fail at fit or
// predict time. backtestMAE, when set, overrides the computed holdout
// error.
type stubModel struct {
	id          string
	kind        contracts.ModelKind
	value       float64
	backtestMAE float64
	failFit     bool
	failPredict bool
}

func (m *stubModel) ID() string                { return m.id }
func (m *stubModel) Kind() contracts.ModelKind { return m.kind }

func (m *stubModel) Fit(ctx context.Context, table *contracts.FeatureTable) error {
	if m.failFit {
		return errors.New("scripted fit failure")
	}
	return ctx.Err()
}

func (m *stubModel) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if m.failPredict {
		return nil, errors.New("scripted predict failure")
	}
	preds := make([]float64, horizon)
	for i := range preds {
		preds[i] = m.value
	}
	return preds, nil
}

func (m *stubModel) Backtest(ctx context.Context, table *contracts.FeatureTable, holdout int) (float64, error) {
	if m.failFit {
		return 0, errors.New("scripted fit failure")
	}
	if m.backtestMAE != 0 {
		return m.backtestMAE, nil
	}

	n := len(table.Rows)
	var sum float64
	for i := n - holdout; i < n; i++ {
		sum += math.Abs(m.value - table.Rows[i].Target)
	}
	return sum / float64(holdout), nil
}

func stubTable(n int, value float64) *contracts.FeatureTable {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	table := &contracts.FeatureTable{
		Names:      []string{"lag_1"},
		Provenance: map[string]contracts.FeatureProvenance{"lag_1": {Base: "target", Origin: contracts.FeatureHistorical}},
	}
	for i := 0; i < n; i++ {
		table.Rows = append(table.Rows, contracts.FeatureRow{
			Timestamp: start.AddDate(0, 0, i),
			Target:    value,
			Features:  map[string]float64{"lag_1": value},
		})
	}
	return table
}

func TestCombinerWeightsSumToOne(t *testing.T) {
	models := []contracts.ForecastModel{
		&stubModel{id: "a", kind: contracts.KindStatistical, value: 100},
		&stubModel{id: "b", kind: contracts.KindStatistical, value: 90},
		&stubModel{id: "c", kind: contracts.KindFeatureConsuming, value: 110},
	}

	c := New(models, 5, 0, zerolog.Nop())
	if err := c.Fit(context.Background(), stubTable(50, 100)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	weights := c.Weights()
	if len(weights) != 3 {
		t.Fatalf("got %d weights, want 3", len(weights))
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("weights sum to %v, want 1", total)
	}

	// Model "a" predicted the holdout exactly and must carry the most weight.
	if weights["a"] <= weights["b"] || weights["a"] <= weights["c"] {
		t.Errorf("exact model should dominate: %v", weights)
	}
}

func TestCombinerExcludesFailingModel(t *testing.T) {
	models := []contracts.ForecastModel{
		&stubModel{id: "good", kind: contracts.KindStatistical, value: 100},
		&stubModel{id: "other", kind: contracts.KindStatistical, value: 101},
		&stubModel{id: "broken", kind: contracts.KindFeatureConsuming, failFit: true},
	}

	c := New(models, 5, 0, zerolog.Nop())
	if err := c.Fit(context.Background(), stubTable(50, 100)); err != nil {
		t.Fatalf("one failing model must not fail the fit: %v", err)
	}

	weights := c.Weights()
	if _, present := weights["broken"]; present {
		t.Error("excluded models must be absent from the weights, not zero-weighted")
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("remaining weights sum to %v, want 1", total)
	}

	if got := c.Excluded(); !reflect.DeepEqual(got, []string{"broken"}) {
		t.Errorf("Excluded() = %v, want [broken]", got)
	}
}

func TestCombinerAllModelsFail(t *testing.T) {
	models := []contracts.ForecastModel{
		&stubModel{id: "a", failFit: true},
		&stubModel{id: "b", failFit: true},
	}

	c := New(models, 5, 0, zerolog.Nop())
	err := c.Fit(context.Background(), stubTable(50, 100))
	if !errors.Is(err, contracts.ErrEnsembleUnavailable) {
		t.Fatalf("got %v, want ErrEnsembleUnavailable", err)
	}

	if _, err := c.Predict(context.Background(), 5); !errors.Is(err, contracts.ErrEnsembleUnavailable) {
		t.Errorf("Predict after a failed fit should also report unavailability, got %v", err)
	}
}

func TestCombinerTinyTable(t *testing.T) {
	c := New([]contracts.ForecastModel{&stubModel{id: "a", value: 1}}, 5, 0, zerolog.Nop())
	if err := c.Fit(context.Background(), stubTable(1, 1)); !errors.Is(err, contracts.ErrEnsembleUnavailable) {
		t.Errorf("got %v, want ErrEnsembleUnavailable for a single-row table", err)
	}
}

func TestCombinerPredictWeightedSum(t *testing.T) {
	models := []contracts.ForecastModel{
		&stubModel{id: "lo", value: 100},
		&stubModel{id: "hi", value: 200},
	}

	c := New(models, 5, 0, zerolog.Nop())
	if err := c.Fit(context.Background(), stubTable(50, 150)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	points, err := c.Predict(context.Background(), 10)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(points) != 10 {
		t.Fatalf("got %d points, want 10", len(points))
	}

	// Both models miss the holdout by 50, so they weigh equally and the
	// combination lands in the middle.
	for i, p := range points {
		if math.Abs(p-150) > 1e-6 {
			t.Errorf("step %d = %v, want 150", i, p)
		}
	}
}

func TestCombinerPredictDropsFailingModel(t *testing.T) {
	brittle := &stubModel{id: "brittle", value: 100}
	models := []contracts.ForecastModel{
		brittle,
		&stubModel{id: "steady", value: 100},
	}

	c := New(models, 5, 0, zerolog.Nop())
	if err := c.Fit(context.Background(), stubTable(50, 100)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Break one model after fit; the combination renormalizes over the rest.
	brittle.failPredict = true

	points, err := c.Predict(context.Background(), 5)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i, p := range points {
		if math.Abs(p-100) > 1e-6 {
			t.Errorf("step %d = %v, want 100 from the surviving model", i, p)
		}
	}
}

func TestCombinerResiduals(t *testing.T) {
	models := []contracts.ForecastModel{
		&stubModel{id: "a", value: 90},
	}

	c := New(models, 4, 0, zerolog.Nop())
	if err := c.Fit(context.Background(), stubTable(40, 100)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	residuals := c.Residuals()
	if len(residuals) != 4 {
		t.Fatalf("got %d residuals, want the holdout length 4", len(residuals))
	}
	for i, r := range residuals {
		if math.Abs(r-10) > 1e-9 {
			t.Errorf("residual %d = %v, want 10", i, r)
		}
	}
}

func TestCombinerDeterministicRefit(t *testing.T) {
	build := func() *Combiner {
		return New([]contracts.ForecastModel{
			&stubModel{id: "a", value: 100},
			&stubModel{id: "b", value: 102},
			&stubModel{id: "c", value: 98},
		}, 5, 0, zerolog.Nop())
	}

	table := stubTable(50, 100)

	first := build()
	if err := first.Fit(context.Background(), table); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	p1, err := first.Predict(context.Background(), 10)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	second := build()
	if err := second.Fit(context.Background(), table); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	p2, err := second.Predict(context.Background(), 10)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if !reflect.DeepEqual(p1, p2) {
		t.Error("identical inputs must produce byte-identical forecasts")
	}
	if !reflect.DeepEqual(first.Weights(), second.Weights()) {
		t.Error("identical inputs must produce identical weights")
	}
}

func TestCombinerWeightsComeFromModelBacktest(t *testing.T) {
	// Both models predict the holdout equally well; only the reported
	// backtest errors differ, so the weights must follow them.
	models := []contracts.ForecastModel{
		&stubModel{id: "sharp", value: 100, backtestMAE: 1},
		&stubModel{id: "dull", value: 100, backtestMAE: 9},
	}

	c := New(models, 5, 0, zerolog.Nop())
	if err := c.Fit(context.Background(), stubTable(50, 100)); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	weights := c.Weights()
	if weights["sharp"] <= weights["dull"] {
		t.Errorf("reported backtest error must drive the weights: %v", weights)
	}
	ratio := weights["sharp"] / weights["dull"]
	if math.Abs(ratio-9) > 1e-6 {
		t.Errorf("weight ratio = %v, want the inverse error ratio 9", ratio)
	}
}

func TestValidateModels(t *testing.T) {
	ok := []contracts.ForecastModel{
		&stubModel{id: "a"},
		&stubModel{id: "b"},
	}
	if err := ValidateModels(ok); err != nil {
		t.Errorf("distinct ids should validate, got %v", err)
	}

	dup := append(ok, &stubModel{id: "a"})
	err := ValidateModels(dup)
	if err == nil {
		t.Fatal("duplicate model ids must be rejected")
	}
	var cfgErr *contracts.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("want *contracts.ConfigError, got %T", err)
	}
}
