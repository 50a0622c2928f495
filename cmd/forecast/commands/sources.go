package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/internal/sources"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/logger"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Probe the enabled signal sources",
	Long: `Fetches the last seven days from every enabled signal source and
reports whether each returned live or fallback data.

Example:
  go run ./cmd/forecast sources`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	enabled := sources.Enabled(cfg.Sources, log)
	if len(enabled) == 0 {
		fmt.Println("no signal sources enabled")
		return nil
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	r := contracts.DateRange{From: now.AddDate(0, 0, -6), To: now}

	for _, src := range enabled {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sources.Timeout)
		records := src.Fetch(ctx, r)
		cancel()

		origin := contracts.OriginLive
		for _, rec := range records {
			if rec.Origin == contracts.OriginFallback {
				origin = contracts.OriginFallback
				break
			}
		}

		fmt.Printf("%-12s %-10s %d records, fields:", src.ID(), origin, len(records))
		for _, f := range src.Fields() {
			fmt.Printf(" %s(%s)", f.Name, f.Kind)
		}
		fmt.Println()
	}
	return nil
}
