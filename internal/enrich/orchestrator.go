// Package enrich merges a trusted historical series with zero or more
// unreliable external signal sources. Enrichment is totally available:
// the pipeline proceeds whether every source succeeds, partially succeeds,
// or entirely fails.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
)

// Orchestrator fans out to all configured signal sources in parallel and
// merges their outputs onto the historical timeline.
type Orchestrator struct {
	timeout time.Duration
	log     zerolog.Logger
}

// New creates an orchestrator with a per-source fetch budget. A slow or
// hanging source hits the timeout and takes the same fallback path as a
// hard failure inside the source.
func New(timeout time.Duration, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		timeout: timeout,
		log:     log.With().Str("component", "enrich.orchestrator").Logger(),
	}
}

// ValidateSources rejects configurations where two enabled sources declare
// the same field name. Runs at configuration load, before any fetch.
func ValidateSources(srcs []contracts.SignalSource) error {
	owner := map[string]contracts.SourceID{}
	for _, src := range srcs {
		for _, f := range src.Fields() {
			if prev, ok := owner[f.Name]; ok {
				return &contracts.ConfigError{
					Field:  f.Name,
					Reason: fmt.Sprintf("declared by both %q and %q", prev, src.ID()),
				}
			}
			owner[f.Name] = src.ID()
		}
	}
	return nil
}

// Enrich joins all enabled sources onto the historical series. With no
// sources it is an exact passthrough of the series. The historical target
// and exogenous columns are never altered and no rows are dropped.
func (o *Orchestrator) Enrich(ctx context.Context, series contracts.Series, srcs []contracts.SignalSource) *contracts.EnrichedDataset {
	ds := &contracts.EnrichedDataset{
		Rows:    make([]contracts.EnrichedRow, len(series)),
		Columns: map[string]contracts.ColumnInfo{},
	}
	for i, p := range series {
		ds.Rows[i] = contracts.EnrichedRow{
			Timestamp: p.Timestamp,
			Target:    p.Target,
			Exog:      p.Exog,
		}
	}

	if len(srcs) == 0 || len(series) == 0 {
		return ds
	}

	results := o.fetchAll(ctx, series.Range(), srcs)

	for i, src := range srcs {
		o.mergeSource(ds, src, results[i])
	}

	o.log.Info().
		Int("sources", len(srcs)).
		Int("external_columns", len(ds.Columns)).
		Int("warnings", len(ds.Warnings)).
		Msg("enrichment completed")

	return ds
}

// fetchAll runs every source concurrently under a per-source timeout.
// Every slot is guaranteed to resolve: Fetch never errors, so the merge
// step is the single synchronization point.
func (o *Orchestrator) fetchAll(ctx context.Context, r contracts.DateRange, srcs []contracts.SignalSource) [][]contracts.ExternalRecord {
	results := make([][]contracts.ExternalRecord, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src contracts.SignalSource) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			start := time.Now()
			results[i] = src.Fetch(fetchCtx, r)

			o.log.Debug().
				Str("source", string(src.ID())).
				Int("records", len(results[i])).
				Dur("duration", time.Since(start)).
				Msg("source fetch settled")
		}(i, src)
	}
	wg.Wait()

	return results
}

// mergeSource joins one source's records onto the dataset by timestamp.
// First-configured source wins duplicate field names; the loser's column is
// skipped with a recorded warning. Missing values are forward-filled within
// the source's own series, then zero-filled (numeric) or "unknown"-filled
// (categorical).
func (o *Orchestrator) mergeSource(ds *contracts.EnrichedDataset, src contracts.SignalSource, records []contracts.ExternalRecord) {
	byDay := make(map[string]contracts.ExternalRecord, len(records))
	origin := contracts.OriginLive
	for _, rec := range records {
		byDay[dayKey(rec.Timestamp)] = rec
		if rec.Origin == contracts.OriginFallback {
			origin = contracts.OriginFallback
		}
	}

	for _, f := range src.Fields() {
		if prev, taken := ds.Columns[f.Name]; taken {
			warning := fmt.Sprintf("field %q from source %q shadowed by earlier source %q", f.Name, src.ID(), prev.Source)
			ds.Warnings = append(ds.Warnings, warning)
			o.log.Warn().Str("field", f.Name).Str("source", string(src.ID())).Msg("duplicate field name, first-configured source wins")
			continue
		}
		ds.Columns[f.Name] = contracts.ColumnInfo{
			Source: src.ID(),
			Kind:   f.Kind,
			Origin: origin,
		}
	}

	lastNumeric := map[string]float64{}
	lastCategorical := map[string]string{}

	for i := range ds.Rows {
		rec, found := byDay[dayKey(ds.Rows[i].Timestamp)]

		for _, f := range src.Fields() {
			info, ok := ds.Columns[f.Name]
			if !ok || info.Source != src.ID() {
				continue // shadowed by an earlier source
			}

			switch f.Kind {
			case contracts.FieldNumeric:
				value, have := 0.0, false
				if found {
					value, have = rec.Numeric[f.Name]
				}
				if !have {
					// forward-fill, else zero-fill
					value = lastNumeric[f.Name]
				}
				lastNumeric[f.Name] = value
				if ds.Rows[i].Numeric == nil {
					ds.Rows[i].Numeric = map[string]float64{}
				}
				ds.Rows[i].Numeric[f.Name] = value

			case contracts.FieldCategorical:
				value, have := "", false
				if found {
					value, have = rec.Categorical[f.Name]
				}
				if !have {
					if prev, filled := lastCategorical[f.Name]; filled {
						value = prev
					} else {
						value = "unknown"
					}
				}
				lastCategorical[f.Name] = value
				if ds.Rows[i].Categorical == nil {
					ds.Rows[i].Categorical = map[string]string{}
				}
				ds.Rows[i].Categorical[f.Name] = value
			}
		}
	}
}

func dayKey(ts time.Time) string {
	return ts.Format("2006-01-02")
}
