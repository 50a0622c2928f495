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

// SourceOrders identifies the e-commerce orders signal.
const SourceOrders contracts.SourceID = "orders"

// OrdersSource provides daily order counts and average order value from a
// storefront API.
type OrdersSource struct {
	cfg    config.OrdersConfig
	client *httputil.Client
	log    zerolog.Logger
}

// NewOrders creates the orders source.
func NewOrders(cfg config.OrdersConfig, client *httputil.Client, log zerolog.Logger) *OrdersSource {
	return &OrdersSource{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "sources.orders").Logger(),
	}
}

// ID implements contracts.SignalSource.
func (s *OrdersSource) ID() contracts.SourceID { return SourceOrders }

// Fields implements contracts.SignalSource.
func (s *OrdersSource) Fields() []contracts.FieldSpec {
	return []contracts.FieldSpec{
		{Name: "daily_orders", Kind: contracts.FieldNumeric},
		{Name: "avg_order_value", Kind: contracts.FieldNumeric},
	}
}

// Fetch returns one record per day in the range, falling back to synthetic
// order flow when the storefront API is unreachable or unconfigured.
func (s *OrdersSource) Fetch(ctx context.Context, r contracts.DateRange) []contracts.ExternalRecord {
	if s.cfg.BaseURL == "" || s.cfg.APIKey == "" {
		s.log.Info().Msg("orders API not configured, using fallback data")
		return s.fallback(r)
	}

	records, err := s.fetchLive(ctx, r)
	if err != nil {
		s.log.Warn().
			Str("source", string(SourceOrders)).
			Err(err).
			Msg("live fetch failed, substituting fallback data")
		return s.fallback(r)
	}
	return records
}

type ordersDay struct {
	Date          string  `json:"date"`
	OrderCount    float64 `json:"order_count"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

type ordersResponse struct {
	Days []ordersDay `json:"days"`
}

func (s *OrdersSource) fetchLive(ctx context.Context, r contracts.DateRange) ([]contracts.ExternalRecord, error) {
	fullURL := fmt.Sprintf("%s/orders/daily?start=%s&end=%s",
		s.cfg.BaseURL, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("X-API-Key", s.cfg.APIKey)

	var body ordersResponse
	if err := s.client.GetJSON(req, &body); err != nil {
		return nil, fmt.Errorf("orders API request failed: %w", err)
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
				"daily_orders":    day.OrderCount,
				"avg_order_value": day.AvgOrderValue,
			},
			Origin: contracts.OriginLive,
			Source: SourceOrders,
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("orders API returned no usable days")
	}

	s.log.Debug().Int("count", len(records)).Msg("fetched orders data")
	return records, nil
}

// fallback generates order flow with midweek-peaking weekly seasonality.
func (s *OrdersSource) fallback(r contracts.DateRange) []contracts.ExternalRecord {
	rng := fallbackRand(SourceOrders, r)

	var records []contracts.ExternalRecord
	for _, day := range rangeDays(r) {
		dow := float64(day.Weekday())
		base := 50 + 20*(5-math.Abs(dow-2))
		orders := math.Floor(base + rng.NormFloat64()*10)
		if orders < 0 {
			orders = 0
		}

		records = append(records, contracts.ExternalRecord{
			Timestamp: day,
			Numeric: map[string]float64{
				"daily_orders":    orders,
				"avg_order_value": 50 + rng.Float64()*100,
			},
			Origin: contracts.OriginFallback,
			Source: SourceOrders,
		})
	}
	return records
}
