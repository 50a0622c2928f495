package contracts

import (
	"sort"
	"time"
)

// SourceID identifies an external signal source.
type SourceID string

// Origin marks whether external data came from a live fetch or from
// the source's synthetic fallback path.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

// FieldKind is the declared value type of an external field.
type FieldKind string

const (
	FieldNumeric     FieldKind = "numeric"
	FieldCategorical FieldKind = "categorical"
)

// FieldSpec declares one field a signal source produces.
type FieldSpec struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`
}

// TimePoint is one row of the historical series. Exog carries optional
// raw exogenous columns supplied alongside the target.
type TimePoint struct {
	Timestamp time.Time          `json:"timestamp"`
	Target    float64            `json:"target"`
	Exog      map[string]float64 `json:"exog,omitempty"`
}

// Series is an ordered historical series (ascending timestamps).
type Series []TimePoint

// DateRange is a closed [From, To] day range.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Days returns the number of calendar days covered by the range, inclusive.
func (r DateRange) Days() int {
	if r.To.Before(r.From) {
		return 0
	}
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Range returns the date range spanned by the series.
func (s Series) Range() DateRange {
	if len(s) == 0 {
		return DateRange{}
	}
	return DateRange{From: s[0].Timestamp, To: s[len(s)-1].Timestamp}
}

// Targets returns the target column as a slice.
func (s Series) Targets() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Target
	}
	return out
}

// ExternalRecord is one timestamped observation emitted by a signal source.
type ExternalRecord struct {
	Timestamp   time.Time          `json:"timestamp"`
	Numeric     map[string]float64 `json:"numeric,omitempty"`
	Categorical map[string]string  `json:"categorical,omitempty"`
	Origin      Origin             `json:"origin"`
	Source      SourceID           `json:"source"`
}

// ColumnInfo records where a merged external column came from.
type ColumnInfo struct {
	Source SourceID  `json:"source"`
	Kind   FieldKind `json:"kind"`
	Origin Origin    `json:"origin"`
}

// EnrichedRow is a historical TimePoint plus merged external values for
// the same timestamp. Historical fields are never overwritten.
type EnrichedRow struct {
	Timestamp   time.Time          `json:"timestamp"`
	Target      float64            `json:"target"`
	Exog        map[string]float64 `json:"exog,omitempty"`
	Numeric     map[string]float64 `json:"numeric,omitempty"`
	Categorical map[string]string  `json:"categorical,omitempty"`
}

// EnrichedDataset is the merge of a historical series with zero or more
// external sources. Invariant: exactly one row per historical timestamp,
// in the original order.
type EnrichedDataset struct {
	Rows     []EnrichedRow         `json:"rows"`
	Columns  map[string]ColumnInfo `json:"columns"`
	Warnings []string              `json:"warnings,omitempty"`
}

// ExternalColumns returns merged external column names in deterministic order.
func (d *EnrichedDataset) ExternalColumns() []string {
	names := make([]string, 0, len(d.Columns))
	for name := range d.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FallbackSources returns the ids of sources whose data is fallback,
// in deterministic order.
func (d *EnrichedDataset) FallbackSources() []SourceID {
	seen := map[SourceID]bool{}
	for _, info := range d.Columns {
		if info.Origin == OriginFallback {
			seen[info.Source] = true
		}
	}
	out := make([]SourceID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FeatureOrigin tags a derived feature as historical or external.
type FeatureOrigin string

const (
	FeatureHistorical FeatureOrigin = "historical"
	FeatureExternal   FeatureOrigin = "external"
)

// FeatureProvenance records the lineage of one derived feature.
type FeatureProvenance struct {
	Base     string        `json:"base"`   // originating raw column
	Origin   FeatureOrigin `json:"origin"` // historical | external
	Source   SourceID      `json:"source,omitempty"`
	Fallback bool          `json:"fallback,omitempty"`
}

// Tag renders the provenance as a compact label, e.g. "historical" or
// "external:weather" ("external:weather(fallback)" when degraded).
func (p FeatureProvenance) Tag() string {
	if p.Origin == FeatureHistorical {
		return string(FeatureHistorical)
	}
	tag := string(FeatureExternal) + ":" + string(p.Source)
	if p.Fallback {
		tag += "(fallback)"
	}
	return tag
}

// FeatureRow is one trainable row of the feature table.
type FeatureRow struct {
	Timestamp time.Time          `json:"timestamp"`
	Target    float64            `json:"target"`
	Features  map[string]float64 `json:"features"`
}

// FeatureTable is the deterministic, versioned feature set derived from an
// enriched dataset. Names is sorted so iteration order is reproducible.
type FeatureTable struct {
	Rows       []FeatureRow                 `json:"rows"`
	Names      []string                     `json:"names"`
	Provenance map[string]FeatureProvenance `json:"provenance"`
}

// Vector flattens a row's features into a slice aligned with Names.
func (t *FeatureTable) Vector(i int) []float64 {
	v := make([]float64, len(t.Names))
	for j, name := range t.Names {
		v[j] = t.Rows[i].Features[name]
	}
	return v
}

// LastVector returns the most recent feature vector, used to anchor
// horizon predictions for feature-consuming models.
func (t *FeatureTable) LastVector() []float64 {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Vector(len(t.Rows) - 1)
}

// Slice returns a shallow sub-table over rows [from, to).
func (t *FeatureTable) Slice(from, to int) *FeatureTable {
	return &FeatureTable{Rows: t.Rows[from:to], Names: t.Names, Provenance: t.Provenance}
}

// ModelKind distinguishes the two model families.
type ModelKind string

const (
	// KindStatistical models consume only the raw target series.
	KindStatistical ModelKind = "statistical"
	// KindFeatureConsuming models consume the full feature table.
	KindFeatureConsuming ModelKind = "feature_consuming"
)

// TrainedModel is a fitted model held by the combiner. Immutable once
// created; retrains produce a new value.
type TrainedModel struct {
	ModelID       string        `json:"model_id"`
	Kind          ModelKind     `json:"kind"`
	Model         ForecastModel `json:"-"`
	BacktestError float64       `json:"backtest_error"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ModelArtifact is the serialization unit for the external model registry.
type ModelArtifact struct {
	ModelID       string    `json:"model_id"`
	Kind          ModelKind `json:"kind"`
	FittedState   []byte    `json:"fitted_state"`
	BacktestError float64   `json:"backtest_error"`
	CreatedAt     time.Time `json:"created_at"`
}

// EnsembleWeights maps surviving model ids to their combination weight.
// Invariant: weights sum to 1; excluded models are absent, not zero.
type EnsembleWeights map[string]float64

// Interval is a (lower, upper) bound pair per horizon step.
type Interval struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// Attribution is one feature's contribution to the ensemble forecast.
type Attribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
	Provenance   string  `json:"provenance"`
}

// ForecastResult is the final value object handed to dashboard/report/API
// collaborators. Field names are stable.
type ForecastResult struct {
	Timestamps   []time.Time          `json:"timestamps"`
	Points       []float64            `json:"points"`
	Intervals    map[float64]Interval `json:"intervals"`
	Attributions []Attribution        `json:"attributions"`
	Insights     []string             `json:"insights"`
	ModelWeights EnsembleWeights      `json:"model_weights"`
	GeneratedAt  time.Time            `json:"generated_at"`
}
