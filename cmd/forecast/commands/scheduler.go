package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/internal/engine"
	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/scheduler"
	"github.com/demandcast/backend/internal/scheduler/jobs"
	"github.com/demandcast/backend/internal/sources"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/logger"
)

var (
	schedulerCron string
	schedulerNow  bool
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the retrain scheduler",
	Long: `Starts the cron scheduler with the forecast retrain job and blocks
until interrupted.

Example:
  go run ./cmd/forecast scheduler --cron "0 0 5 * * *"`,
	RunE: runScheduler,
}

func init() {
	schedulerCmd.Flags().StringVar(&schedulerCron, "cron", "0 0 5 * * *", "retrain schedule (seconds-aware cron format)")
	schedulerCmd.Flags().BoolVar(&schedulerNow, "now", false, "trigger one retrain immediately on start")
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	srcs := sources.Enabled(cfg.Sources, log)
	eng, err := engine.New(cfg, srcs, models.Default(), log)
	if err != nil {
		return err
	}

	provider := demoProvider{days: runDemoDays, seed: runSeed}
	consumer := logConsumer{log: log}

	sched := scheduler.New(log)
	job := jobs.NewRetrainJob(eng, provider, consumer, schedulerCron, log)
	if err := sched.AddJob(job); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	if schedulerNow {
		if err := sched.RunJob(job.Name()); err != nil {
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received")
	return nil
}

// demoProvider satisfies jobs.SeriesProvider with the demo generator.
// Real deployments wire the data-ingestion collaborator here.
type demoProvider struct {
	days int
	seed int64
}

func (p demoProvider) LatestSeries(ctx context.Context) (contracts.Series, error) {
	days := p.days
	if days <= 0 {
		days = 180
	}
	return demoSeries(days, p.seed), nil
}

// logConsumer satisfies jobs.ResultConsumer by logging a forecast summary.
type logConsumer struct {
	log zerolog.Logger
}

func (c logConsumer) Consume(ctx context.Context, result *contracts.ForecastResult) error {
	c.log.Info().
		Int("points", len(result.Points)).
		Int("attributions", len(result.Attributions)).
		Time("generated_at", result.GeneratedAt).
		Msg("forecast result ready")
	return nil
}
