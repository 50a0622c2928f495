package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/httputil"
)

// SourceAnalytics identifies the web analytics signal.
const SourceAnalytics contracts.SourceID = "analytics"

// AnalyticsSource provides daily site traffic and bounce rate.
type AnalyticsSource struct {
	cfg    config.AnalyticsConfig
	client *httputil.Client
	log    zerolog.Logger
}

// NewAnalytics creates the analytics source.
func NewAnalytics(cfg config.AnalyticsConfig, client *httputil.Client, log zerolog.Logger) *AnalyticsSource {
	return &AnalyticsSource{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "sources.analytics").Logger(),
	}
}

// ID implements contracts.SignalSource.
func (s *AnalyticsSource) ID() contracts.SourceID { return SourceAnalytics }

// Fields implements contracts.SignalSource.
func (s *AnalyticsSource) Fields() []contracts.FieldSpec {
	return []contracts.FieldSpec{
		{Name: "web_traffic", Kind: contracts.FieldNumeric},
		{Name: "bounce_rate", Kind: contracts.FieldNumeric},
	}
}

// Fetch returns one record per day in the range, falling back to synthetic
// traffic when the API is unreachable or unconfigured.
func (s *AnalyticsSource) Fetch(ctx context.Context, r contracts.DateRange) []contracts.ExternalRecord {
	if s.cfg.BaseURL == "" || s.cfg.APIKey == "" {
		s.log.Info().Msg("analytics API not configured, using fallback data")
		return s.fallback(r)
	}

	records, err := s.fetchLive(ctx, r)
	if err != nil {
		s.log.Warn().
			Str("source", string(SourceAnalytics)).
			Err(err).
			Msg("live fetch failed, substituting fallback data")
		return s.fallback(r)
	}
	return records
}

type analyticsDay struct {
	Date       string  `json:"date"`
	Sessions   float64 `json:"sessions"`
	BounceRate float64 `json:"bounce_rate"`
}

type analyticsResponse struct {
	Days []analyticsDay `json:"days"`
}

func (s *AnalyticsSource) fetchLive(ctx context.Context, r contracts.DateRange) ([]contracts.ExternalRecord, error) {
	fullURL := fmt.Sprintf("%s/reports/daily?start=%s&end=%s",
		s.cfg.BaseURL, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	var body analyticsResponse
	if err := s.client.GetJSON(req, &body); err != nil {
		return nil, fmt.Errorf("analytics API request failed: %w", err)
	}

	var records []contracts.ExternalRecord
	for _, day := range body.Days {
		ts, err := parseDay(day.Date)
		if err != nil {
			continue
		}
		records = append(records, contracts.ExternalRecord{
			Timestamp: ts,
			Numeric: map[string]float64{
				"web_traffic": day.Sessions,
				"bounce_rate": day.BounceRate,
			},
			Origin: contracts.OriginLive,
			Source: SourceAnalytics,
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("analytics API returned no usable days")
	}

	s.log.Debug().Int("count", len(records)).Msg("fetched analytics data")
	return records, nil
}

// fallback generates traffic with weekly seasonality peaking midweek.
func (s *AnalyticsSource) fallback(r contracts.DateRange) []contracts.ExternalRecord {
	rng := fallbackRand(SourceAnalytics, r)

	var records []contracts.ExternalRecord
	for _, day := range rangeDays(r) {
		dow := float64(day.Weekday())
		base := 1000 + 300*(5-math.Abs(dow-2))
		traffic := math.Floor(base + rng.NormFloat64()*100)
		if traffic < 0 {
			traffic = 0
		}

		records = append(records, contracts.ExternalRecord{
			Timestamp: day,
			Numeric: map[string]float64{
				"web_traffic": traffic,
				"bounce_rate": 0.3 + rng.Float64()*0.4,
			},
			Origin: contracts.OriginFallback,
			Source: SourceAnalytics,
		})
	}
	return records
}
