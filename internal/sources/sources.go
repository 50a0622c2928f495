// Package sources holds the built-in signal source implementations. New
// sources are added by implementing contracts.SignalSource; the orchestrator
// discovers enabled sources purely from configuration.
package sources

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/httputil"
)

// Enabled builds the enabled signal sources in configuration order.
// The order is the merge precedence: on duplicate field names the
// first-configured source wins.
func Enabled(cfg config.SourcesConfig, log zerolog.Logger) []contracts.SignalSource {
	client := httputil.New(log, cfg.Timeout)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		client = client.WithRateLimit(cfg.RateLimit, burst)
	}

	var enabled []contracts.SignalSource
	if cfg.Weather.Enabled {
		enabled = append(enabled, NewWeather(cfg.Weather, client, log))
	}
	if cfg.News.Enabled {
		enabled = append(enabled, NewNews(cfg.News, client, log))
	}
	if cfg.Analytics.Enabled {
		enabled = append(enabled, NewAnalytics(cfg.Analytics, client, log))
	}
	if cfg.Orders.Enabled {
		enabled = append(enabled, NewOrders(cfg.Orders, client, log))
	}
	return enabled
}

// parseDay parses an API date string in YYYY-MM-DD form, normalized to UTC.
func parseDay(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
