package contracts

import "context"

// SignalSource provides one external exogenous signal. Fetch never returns
// an error: on transport/auth/rate-limit failure it retries with bounded
// attempts and, if still failing, returns synthetic records stamped
// Origin=fallback covering the full requested range. Timeouts arrive via
// ctx and take the same fallback path.
type SignalSource interface {
	ID() SourceID
	Fields() []FieldSpec
	Fetch(ctx context.Context, r DateRange) []ExternalRecord
}

// ForecastModel is the common contract over statistical and
// feature-consuming models. Fit and Backtest report failure as an error so
// the combiner can exclude the model without failing the pipeline.
type ForecastModel interface {
	ID() string
	Kind() ModelKind
	Fit(ctx context.Context, table *FeatureTable) error
	Predict(ctx context.Context, horizon int) ([]float64, error)
	// Backtest fits a fresh copy on all but the trailing holdout rows and
	// returns the out-of-sample error metric on those rows.
	Backtest(ctx context.Context, table *FeatureTable, holdout int) (float64, error)
}

// FeatureImporter is implemented by models that can report per-feature
// importance for attribution. Statistical models typically do not.
type FeatureImporter interface {
	FeatureImportance() map[string]float64
}

// StateMarshaler is implemented by models whose fitted state can be
// serialized for the external model registry.
type StateMarshaler interface {
	MarshalState() ([]byte, error)
}

// WeightingStrategy converts per-model backtest errors into ensemble
// weights over the surviving model set. Returned weights sum to 1.
type WeightingStrategy interface {
	Weights(backtestErrors map[string]float64) EnsembleWeights
}
