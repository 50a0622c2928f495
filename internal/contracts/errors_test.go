package contracts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "avg_temp", Reason: `declared by both "weather" and "backup_weather"`}
	if !strings.Contains(err.Error(), "avg_temp") {
		t.Errorf("ConfigError should name the offending field, got %q", err.Error())
	}
}

func TestModelFitErrorUnwrap(t *testing.T) {
	inner := errors.New("singular system")
	err := &ModelFitError{ModelID: "ridge", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("ModelFitError should unwrap to the inner error")
	}
	if !strings.Contains(err.Error(), "ridge") {
		t.Errorf("ModelFitError should name the model, got %q", err.Error())
	}
}

func TestErrEnsembleUnavailableWrapping(t *testing.T) {
	wrapped := fmt.Errorf("forecast run failed: %w", ErrEnsembleUnavailable)
	if !errors.Is(wrapped, ErrEnsembleUnavailable) {
		t.Error("wrapped sentinel should still match with errors.Is")
	}
}
