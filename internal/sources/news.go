package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/pkg/config"
	"github.com/demandcast/backend/pkg/httputil"
)

// SourceNews identifies the daily news activity signal.
const SourceNews contracts.SourceID = "news"

// NewsSource provides daily article counts and average headline sentiment,
// scraped from a news archive page per day.
type NewsSource struct {
	cfg    config.NewsConfig
	client *httputil.Client
	log    zerolog.Logger
}

// NewNews creates the news source.
func NewNews(cfg config.NewsConfig, client *httputil.Client, log zerolog.Logger) *NewsSource {
	return &NewsSource{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "sources.news").Logger(),
	}
}

// ID implements contracts.SignalSource.
func (s *NewsSource) ID() contracts.SourceID { return SourceNews }

// Fields implements contracts.SignalSource.
func (s *NewsSource) Fields() []contracts.FieldSpec {
	return []contracts.FieldSpec{
		{Name: "news_count", Kind: contracts.FieldNumeric},
		{Name: "news_sentiment", Kind: contracts.FieldNumeric},
	}
}

// Fetch returns one record per day in the range. A failed day fails the
// whole live fetch; partial archives are worse than honest fallback data.
func (s *NewsSource) Fetch(ctx context.Context, r contracts.DateRange) []contracts.ExternalRecord {
	if s.cfg.BaseURL == "" {
		s.log.Info().Msg("no archive URL configured, using fallback news data")
		return s.fallback(r)
	}

	records, err := s.fetchLive(ctx, r)
	if err != nil {
		s.log.Warn().
			Str("source", string(SourceNews)).
			Err(err).
			Msg("live fetch failed, substituting fallback data")
		return s.fallback(r)
	}
	return records
}

func (s *NewsSource) fetchLive(ctx context.Context, r contracts.DateRange) ([]contracts.ExternalRecord, error) {
	var records []contracts.ExternalRecord
	for _, day := range rangeDays(r) {
		count, sentiment, err := s.scrapeDay(ctx, day.Format("2006-01-02"))
		if err != nil {
			return nil, fmt.Errorf("scrape %s failed: %w", day.Format("2006-01-02"), err)
		}
		records = append(records, contracts.ExternalRecord{
			Timestamp: day,
			Numeric: map[string]float64{
				"news_count":     float64(count),
				"news_sentiment": sentiment,
			},
			Origin: contracts.OriginLive,
			Source: SourceNews,
		})
	}

	s.log.Debug().Int("count", len(records)).Msg("fetched news data")
	return records, nil
}

// scrapeDay counts matching articles on one archive page and averages any
// per-article sentiment scores it carries.
func (s *NewsSource) scrapeDay(ctx context.Context, date string) (int, float64, error) {
	fullURL := fmt.Sprintf("%s/archive?date=%s", s.cfg.BaseURL, date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("parse HTML failed: %w", err)
	}

	count := 0
	sentimentSum := 0.0
	sentimentN := 0

	doc.Find("article, li.article").Each(func(_ int, sel *goquery.Selection) {
		headline := strings.ToLower(sel.Find(".headline, h2, h3").Text())
		if !s.matchesKeywords(headline) {
			return
		}
		count++

		if raw, ok := sel.Attr("data-sentiment"); ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				sentimentSum += v
				sentimentN++
			}
		}
	})

	sentiment := 0.0
	if sentimentN > 0 {
		sentiment = sentimentSum / float64(sentimentN)
	}
	return count, sentiment, nil
}

func (s *NewsSource) matchesKeywords(headline string) bool {
	if len(s.cfg.Keywords) == 0 {
		return true
	}
	for _, kw := range s.cfg.Keywords {
		if strings.Contains(headline, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// fallback generates weekday-heavy article counts and mild sentiment noise.
func (s *NewsSource) fallback(r contracts.DateRange) []contracts.ExternalRecord {
	rng := fallbackRand(SourceNews, r)

	var records []contracts.ExternalRecord
	for _, day := range rangeDays(r) {
		base := 20.0
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			base = 8.0
		}
		count := base + rng.NormFloat64()*3
		if count < 0 {
			count = 0
		}

		records = append(records, contracts.ExternalRecord{
			Timestamp: day,
			Numeric: map[string]float64{
				"news_count":     float64(int(count)),
				"news_sentiment": rng.Float64()*2 - 1,
			},
			Origin: contracts.OriginFallback,
			Source: SourceNews,
		})
	}
	return records
}
