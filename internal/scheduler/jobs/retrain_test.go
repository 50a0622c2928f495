package jobs

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/internal/engine"
	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/pkg/config"
)

type stubProvider struct {
	series contracts.Series
	err    error
}

func (p stubProvider) LatestSeries(ctx context.Context) (contracts.Series, error) {
	return p.series, p.err
}

type captureConsumer struct {
	result *contracts.ForecastResult
}

func (c *captureConsumer) Consume(ctx context.Context, result *contracts.ForecastResult) error {
	c.result = result
	return nil
}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := &config.Config{
		Env: "development",
		Forecast: config.ForecastConfig{
			Horizon:          14,
			LagDepths:        []int{1, 7},
			RollingWindows:   []int{7},
			ExternalLags:     []int{1, 3},
			ConfidenceLevels: []float64{0.1, 0.9},
			HoldoutDays:      7,
		},
		Sources:   config.SourcesConfig{Timeout: time.Second},
		LogLevel:  "info",
		LogFormat: "json",
	}
	eng, err := engine.New(cfg, nil, models.Default(), zerolog.Nop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

func demandSeries(days int) contracts.Series {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	series := make(contracts.Series, days)
	for i := 0; i < days; i++ {
		ts := start.AddDate(0, 0, i)
		series[i] = contracts.TimePoint{
			Timestamp: ts,
			Target:    150 + float64(i) + 10*math.Sin(2*math.Pi*float64(ts.Weekday())/7),
		}
	}
	return series
}

func TestRetrainJobRun(t *testing.T) {
	consumer := &captureConsumer{}
	job := NewRetrainJob(testEngine(t), stubProvider{series: demandSeries(90)}, consumer, "0 0 5 * * *", zerolog.Nop())

	if job.Name() != "forecast_retrain" {
		t.Errorf("Name() = %q", job.Name())
	}
	if job.Schedule() != "0 0 5 * * *" {
		t.Errorf("Schedule() = %q", job.Schedule())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if consumer.result == nil {
		t.Fatal("consumer never received the forecast")
	}
	if len(consumer.result.Points) != 14 {
		t.Errorf("got %d points, want 14", len(consumer.result.Points))
	}
}

func TestRetrainJobProviderFailure(t *testing.T) {
	job := NewRetrainJob(testEngine(t), stubProvider{err: errors.New("ingestion offline")}, nil, "@daily", zerolog.Nop())

	if err := job.Run(context.Background()); err == nil {
		t.Error("a provider failure must fail the job so the scheduler retries")
	}
}

func TestRetrainJobNilConsumer(t *testing.T) {
	job := NewRetrainJob(testEngine(t), stubProvider{series: demandSeries(90)}, nil, "@daily", zerolog.Nop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run without a consumer: %v", err)
	}
}
