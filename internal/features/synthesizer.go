// Package features derives the deterministic, versioned feature table from
// an enriched dataset. Every derived feature name encodes its base column
// and transform, so re-derivation over the same inputs is idempotent.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/pkg/config"
)

// Synthesizer builds feature tables: target lags, rolling statistics,
// calendar features, and automatically derived features for every external
// column the orchestrator merged in.
type Synthesizer struct {
	cfg config.ForecastConfig
	log zerolog.Logger
}

// New creates a synthesizer.
func New(cfg config.ForecastConfig, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		cfg: cfg,
		log: log.With().Str("component", "features.synthesizer").Logger(),
	}
}

// Synthesize derives the trainable feature table. Rows whose lag or rolling
// window would extend before the start of the data are dropped; that is the
// documented warm-up edge case, not an error.
func (s *Synthesizer) Synthesize(ds *contracts.EnrichedDataset) *contracts.FeatureTable {
	n := len(ds.Rows)
	table := &contracts.FeatureTable{Provenance: map[string]contracts.FeatureProvenance{}}
	if n == 0 {
		return table
	}

	targets := make([]float64, n)
	for i, row := range ds.Rows {
		targets[i] = row.Target
	}

	warmup := s.warmupRows(len(ds.Columns) > 0)
	catCodes := s.categoricalCodes(ds)

	for i := warmup; i < n; i++ {
		row := ds.Rows[i]
		feats := map[string]float64{}

		// Target lags.
		for _, lag := range s.cfg.LagDepths {
			name := fmt.Sprintf("lag_%d", lag)
			feats[name] = targets[i-lag]
			s.record(table, name, contracts.FeatureProvenance{Base: "target", Origin: contracts.FeatureHistorical})
		}

		// Rolling statistics over the target, window ending at the row.
		for _, w := range s.cfg.RollingWindows {
			mean, std := rollingStats(targets[i-w+1 : i+1])
			meanName := fmt.Sprintf("rolling_mean_%d", w)
			stdName := fmt.Sprintf("rolling_std_%d", w)
			feats[meanName] = mean
			feats[stdName] = std
			s.record(table, meanName, contracts.FeatureProvenance{Base: "target", Origin: contracts.FeatureHistorical})
			s.record(table, stdName, contracts.FeatureProvenance{Base: "target", Origin: contracts.FeatureHistorical})
		}

		// Calendar features.
		ts := row.Timestamp
		month := float64(ts.Month())
		feats["day_of_week"] = float64(ts.Weekday())
		feats["month"] = month
		feats["day_of_year"] = float64(ts.YearDay())
		feats["is_weekend"] = 0
		if wd := ts.Weekday(); wd == 0 || wd == 6 {
			feats["is_weekend"] = 1
		}
		feats["month_sin"] = math.Sin(2 * math.Pi * month / 12)
		feats["month_cos"] = math.Cos(2 * math.Pi * month / 12)
		for _, name := range []string{"day_of_week", "month", "day_of_year", "is_weekend", "month_sin", "month_cos"} {
			s.record(table, name, contracts.FeatureProvenance{Base: "timestamp", Origin: contracts.FeatureHistorical})
		}

		// Raw historical exogenous columns pass through untouched.
		for name, v := range row.Exog {
			feats[name] = v
			s.record(table, name, contracts.FeatureProvenance{Base: name, Origin: contracts.FeatureHistorical})
		}

		// External columns: auto-derived without per-field configuration.
		s.externalFeatures(ds, table, feats, i, catCodes)

		table.Rows = append(table.Rows, contracts.FeatureRow{
			Timestamp: ts,
			Target:    row.Target,
			Features:  feats,
		})
	}

	table.Names = sortedNames(table.Provenance)

	s.log.Info().
		Int("rows", len(table.Rows)).
		Int("features", len(table.Names)).
		Int("warmup_dropped", warmup).
		Msg("feature synthesis completed")

	return table
}

// externalFeatures derives lag and rolling features for every merged
// external column. This is the auto-derivation contract: any new external
// field becomes forecast-usable with zero code change.
func (s *Synthesizer) externalFeatures(ds *contracts.EnrichedDataset, table *contracts.FeatureTable, feats map[string]float64, i int, catCodes map[string]map[string]float64) {
	for _, col := range ds.ExternalColumns() {
		info := ds.Columns[col]
		prov := contracts.FeatureProvenance{
			Base:     col,
			Origin:   contracts.FeatureExternal,
			Source:   info.Source,
			Fallback: info.Origin == contracts.OriginFallback,
		}

		switch info.Kind {
		case contracts.FieldNumeric:
			feats[col] = ds.Rows[i].Numeric[col]
			s.record(table, col, prov)

			for _, lag := range s.cfg.ExternalLags {
				if i-lag < 0 {
					continue
				}
				name := fmt.Sprintf("%s_lag_%d", col, lag)
				feats[name] = ds.Rows[i-lag].Numeric[col]
				s.record(table, name, prov)
			}

			if i-externalRollingWindow+1 >= 0 {
				window := make([]float64, 0, externalRollingWindow)
				for j := i - externalRollingWindow + 1; j <= i; j++ {
					window = append(window, ds.Rows[j].Numeric[col])
				}
				mean, _ := rollingStats(window)
				name := fmt.Sprintf("%s_rolling_%d", col, externalRollingWindow)
				feats[name] = mean
				s.record(table, name, prov)
			}

		case contracts.FieldCategorical:
			name := col + "_code"
			feats[name] = catCodes[col][ds.Rows[i].Categorical[col]]
			s.record(table, name, prov)
		}
	}
}

// externalRollingWindow is the fixed short window used for auto-derived
// external rolling means.
const externalRollingWindow = 7

// categoricalCodes builds a deterministic ordinal encoding per categorical
// column over the sorted set of observed values.
func (s *Synthesizer) categoricalCodes(ds *contracts.EnrichedDataset) map[string]map[string]float64 {
	codes := map[string]map[string]float64{}
	for col, info := range ds.Columns {
		if info.Kind != contracts.FieldCategorical {
			continue
		}
		seen := map[string]bool{}
		for _, row := range ds.Rows {
			seen[row.Categorical[col]] = true
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)

		m := make(map[string]float64, len(values))
		for idx, v := range values {
			m[v] = float64(idx)
		}
		codes[col] = m
	}
	return codes
}

// warmupRows returns how many leading rows lack enough history for the
// deepest lag or widest window.
func (s *Synthesizer) warmupRows(hasExternal bool) int {
	warmup := 0
	for _, lag := range s.cfg.LagDepths {
		if lag > warmup {
			warmup = lag
		}
	}
	for _, w := range s.cfg.RollingWindows {
		if w-1 > warmup {
			warmup = w - 1
		}
	}
	if hasExternal {
		for _, lag := range s.cfg.ExternalLags {
			if lag > warmup {
				warmup = lag
			}
		}
		if externalRollingWindow-1 > warmup {
			warmup = externalRollingWindow - 1
		}
	}
	return warmup
}

func (s *Synthesizer) record(table *contracts.FeatureTable, name string, prov contracts.FeatureProvenance) {
	if _, ok := table.Provenance[name]; !ok {
		table.Provenance[name] = prov
	}
}

func rollingStats(window []float64) (mean, std float64) {
	if len(window) == 0 {
		return 0, 0
	}
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))

	if len(window) < 2 {
		return mean, 0
	}
	for _, v := range window {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(window)-1))
	return mean, std
}

func sortedNames(prov map[string]contracts.FeatureProvenance) []string {
	names := make([]string, 0, len(prov))
	for name := range prov {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
