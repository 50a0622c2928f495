// Package jobs holds the concrete scheduled jobs.
package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/internal/engine"
)

// SeriesProvider supplies the current historical series for a retrain.
// The data-ingestion collaborator implements it.
type SeriesProvider interface {
	LatestSeries(ctx context.Context) (contracts.Series, error)
}

// ResultConsumer receives each retrain's forecast (report layer, cache,
// model registry hand-off).
type ResultConsumer interface {
	Consume(ctx context.Context, result *contracts.ForecastResult) error
}

// RetrainJob re-runs the forecast pipeline on a schedule so trained models
// are superseded, never mutated, as new history arrives.
type RetrainJob struct {
	engine   *engine.Engine
	provider SeriesProvider
	consumer ResultConsumer
	schedule string
	log      zerolog.Logger
}

// NewRetrainJob creates a retrain job. Schedule uses the seconds-aware
// cron format, e.g. "0 0 5 * * *" for 5 AM daily.
func NewRetrainJob(eng *engine.Engine, provider SeriesProvider, consumer ResultConsumer, schedule string, log zerolog.Logger) *RetrainJob {
	return &RetrainJob{
		engine:   eng,
		provider: provider,
		consumer: consumer,
		schedule: schedule,
		log:      log.With().Str("component", "jobs.retrain").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *RetrainJob) Name() string { return "forecast_retrain" }

// Schedule implements scheduler.Job.
func (j *RetrainJob) Schedule() string { return j.schedule }

// Run implements scheduler.Job.
func (j *RetrainJob) Run(ctx context.Context) error {
	series, err := j.provider.LatestSeries(ctx)
	if err != nil {
		return fmt.Errorf("load series: %w", err)
	}

	result, err := j.engine.Run(ctx, series)
	if err != nil {
		return fmt.Errorf("forecast run: %w", err)
	}

	j.log.Info().
		Int("points", len(result.Points)).
		Int("insights", len(result.Insights)).
		Msg("scheduled retrain produced forecast")

	if j.consumer != nil {
		if err := j.consumer.Consume(ctx, result); err != nil {
			return fmt.Errorf("consume result: %w", err)
		}
	}
	return nil
}
