package explain

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
)

// importerModel is a ForecastModel stub carrying fixed feature importances.
type importerModel struct {
	id          string
	kind        contracts.ModelKind
	importances map[string]float64
}

func (m *importerModel) ID() string                { return m.id }
func (m *importerModel) Kind() contracts.ModelKind { return m.kind }

func (m *importerModel) Fit(ctx context.Context, table *contracts.FeatureTable) error { return nil }

func (m *importerModel) Predict(ctx context.Context, horizon int) ([]float64, error) {
	return make([]float64, horizon), nil
}

func (m *importerModel) Backtest(ctx context.Context, table *contracts.FeatureTable, holdout int) (float64, error) {
	return 0, nil
}

func (m *importerModel) FeatureImportance() map[string]float64 { return m.importances }

// plainModel is a statistical stub with no importance surface.
type plainModel struct{ importerModel }

func (m *plainModel) FeatureImportance() map[string]float64 { return nil }

func testTable() *contracts.FeatureTable {
	return &contracts.FeatureTable{
		Names: []string{"lag_1", "lag_7", "visits", "avg_temp", "rolling_mean_7", "day_of_week", "month"},
		Provenance: map[string]contracts.FeatureProvenance{
			"lag_1":          {Base: "target", Origin: contracts.FeatureHistorical},
			"lag_7":          {Base: "target", Origin: contracts.FeatureHistorical},
			"rolling_mean_7": {Base: "target", Origin: contracts.FeatureHistorical},
			"day_of_week":    {Base: "timestamp", Origin: contracts.FeatureHistorical},
			"month":          {Base: "timestamp", Origin: contracts.FeatureHistorical},
			"visits":         {Base: "visits", Origin: contracts.FeatureExternal, Source: "analytics"},
			"avg_temp":       {Base: "avg_temp", Origin: contracts.FeatureExternal, Source: "weather", Fallback: true},
		},
	}
}

func testTrained() ([]contracts.TrainedModel, contracts.EnsembleWeights) {
	ridge := &importerModel{
		id:   "ridge",
		kind: contracts.KindFeatureConsuming,
		importances: map[string]float64{
			"lag_1":          0.4,
			"visits":         0.3,
			"avg_temp":       0.1,
			"lag_7":          0.1,
			"rolling_mean_7": 0.05,
			"day_of_week":    0.03,
			"month":          0.02,
		},
	}
	seasonal := &plainModel{importerModel{id: "seasonal_trend", kind: contracts.KindStatistical}}

	trained := []contracts.TrainedModel{
		{ModelID: "ridge", Kind: contracts.KindFeatureConsuming, Model: ridge, BacktestError: 5},
		{ModelID: "seasonal_trend", Kind: contracts.KindStatistical, Model: seasonal, BacktestError: 8},
	}
	weights := contracts.EnsembleWeights{"ridge": 0.6, "seasonal_trend": 0.4}
	return trained, weights
}

func TestExplainTopAttributions(t *testing.T) {
	e := New(zerolog.Nop())
	trained, weights := testTrained()
	points := []float64{100, 102, 104}

	attributions, _ := e.Explain(trained, weights, testTable(), points, Degradations{})

	if len(attributions) != topAttributions {
		t.Fatalf("got %d attributions, want %d", len(attributions), topAttributions)
	}
	if attributions[0].Feature != "lag_1" {
		t.Errorf("top driver = %s, want lag_1", attributions[0].Feature)
	}

	for i := 1; i < len(attributions); i++ {
		if attributions[i].Contribution > attributions[i-1].Contribution {
			t.Fatalf("attributions not sorted descending at %d", i)
		}
	}

	var total float64
	for _, a := range attributions {
		if a.Contribution < 0 {
			t.Errorf("%s contribution %v must be non-negative", a.Feature, a.Contribution)
		}
		total += a.Contribution
	}
	if total > 1+1e-9 {
		t.Errorf("top contributions sum to %v, cannot exceed 1", total)
	}
}

func TestExplainProvenanceTags(t *testing.T) {
	e := New(zerolog.Nop())
	trained, weights := testTrained()

	attributions, _ := e.Explain(trained, weights, testTable(), []float64{100, 101}, Degradations{})

	tags := map[string]string{}
	for _, a := range attributions {
		tags[a.Feature] = a.Provenance
	}
	if tags["lag_1"] != "historical" {
		t.Errorf("lag_1 provenance = %q", tags["lag_1"])
	}
	if tags["visits"] != "external:analytics" {
		t.Errorf("visits provenance = %q", tags["visits"])
	}
	if tags["avg_temp"] != "external:weather(fallback)" {
		t.Errorf("avg_temp provenance = %q", tags["avg_temp"])
	}
}

func TestExplainInsightsTrend(t *testing.T) {
	e := New(zerolog.Nop())
	trained, weights := testTrained()

	_, up := e.Explain(trained, weights, testTable(), []float64{100, 110, 120}, Degradations{})
	if !containsSubstring(up, "upward trend") {
		t.Errorf("want an upward-trend insight, got %v", up)
	}

	_, down := e.Explain(trained, weights, testTable(), []float64{120, 110, 100}, Degradations{})
	if !containsSubstring(down, "downward trend") {
		t.Errorf("want a downward-trend insight, got %v", down)
	}
}

func TestExplainDegradationInsights(t *testing.T) {
	e := New(zerolog.Nop())
	trained, weights := testTrained()

	deg := Degradations{
		FallbackSources: []contracts.SourceID{"weather"},
		ExcludedModels:  []string{"knn"},
		MergeWarnings:   []string{`field "visits" from source "backup" shadowed by earlier source "analytics"`},
	}

	_, insights := e.Explain(trained, weights, testTable(), []float64{100, 101}, deg)

	if !containsSubstring(insights, `source "weather" returned fallback data`) {
		t.Errorf("missing fallback-source insight in %v", insights)
	}
	if !containsSubstring(insights, `Model "knn" was excluded`) {
		t.Errorf("missing excluded-model insight in %v", insights)
	}
	if !containsSubstring(insights, "shadowed by earlier source") {
		t.Errorf("merge warnings must surface in the insights, got %v", insights)
	}
}

func TestExplainStatisticalShareInsight(t *testing.T) {
	e := New(zerolog.Nop())
	trained, weights := testTrained()

	_, insights := e.Explain(trained, weights, testTable(), []float64{100, 101}, Degradations{})
	if !containsSubstring(insights, "40% of the ensemble weight") {
		t.Errorf("want the statistical weight share spelled out, got %v", insights)
	}
}

func TestExplainDeterministic(t *testing.T) {
	e := New(zerolog.Nop())
	trained, weights := testTrained()
	points := []float64{100, 103, 99, 107}

	a1, i1 := e.Explain(trained, weights, testTable(), points, Degradations{})
	a2, i2 := e.Explain(trained, weights, testTable(), points, Degradations{})

	if !reflect.DeepEqual(a1, a2) {
		t.Error("attributions must be identical across repeated explains")
	}
	if !reflect.DeepEqual(i1, i2) {
		t.Error("insights must be identical across repeated explains")
	}
}

func TestExplainNoImporters(t *testing.T) {
	e := New(zerolog.Nop())
	seasonal := &plainModel{importerModel{id: "seasonal_trend", kind: contracts.KindStatistical}}
	trained := []contracts.TrainedModel{{ModelID: "seasonal_trend", Kind: contracts.KindStatistical, Model: seasonal}}
	weights := contracts.EnsembleWeights{"seasonal_trend": 1}

	attributions, insights := e.Explain(trained, weights, testTable(), []float64{100, 101}, Degradations{})
	if len(attributions) != 0 {
		t.Errorf("no importers means no attributions, got %v", attributions)
	}
	if len(insights) == 0 {
		t.Error("trend and model-mix insights should still be produced")
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{2, 4, 6})
	if math.Abs(mean-4) > 1e-9 {
		t.Errorf("mean = %v, want 4", mean)
	}
	// Population standard deviation of {2, 4, 6}.
	if math.Abs(std-math.Sqrt(8.0/3.0)) > 1e-9 {
		t.Errorf("std = %v", std)
	}
}

func containsSubstring(insights []string, sub string) bool {
	for _, s := range insights {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
