package contracts

import (
	"errors"
	"fmt"
)

// ErrEnsembleUnavailable is returned when zero models survived fit and
// backtest. It is the only failure that crosses the core boundary; a
// fabricated forecast is never returned in its place.
var ErrEnsembleUnavailable = errors.New("ensemble unavailable: no models survived training")

// ConfigError reports an invalid configuration. Raised at load/validate
// time, before any fetch or fit occurs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// ModelFitError wraps a per-model training failure. Recoverable at the
// ensemble level: the failing model is excluded, the pipeline continues.
type ModelFitError struct {
	ModelID string
	Err     error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("model %s fit failed: %v", e.ModelID, e.Err)
}

func (e *ModelFitError) Unwrap() error { return e.Err }
