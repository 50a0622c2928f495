package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/pkg/config"
)

const archivePage = `<html><body>
<ul>
	<li class="article" data-sentiment="0.5"><h2>Big summer sale starts today</h2></li>
	<li class="article" data-sentiment="-0.1"><h2>Retail sale numbers disappoint</h2></li>
	<li class="article"><h2>Local weather report</h2></li>
</ul>
<article data-sentiment="0.8"><h3>Holiday sale breaks records</h3></article>
</body></html>`

func TestNewsFetchLive(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/archive", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(archivePage))
	})
	server := httptest.NewServer(router)
	defer server.Close()

	src := NewNews(config.NewsConfig{
		BaseURL:  server.URL,
		Keywords: []string{"sale"},
	}, testClient(t), zerolog.Nop())

	r := testRange()
	records := src.Fetch(context.Background(), r)
	if len(records) != r.Days() {
		t.Fatalf("got %d records, want %d", len(records), r.Days())
	}

	rec := records[0]
	if rec.Origin != contracts.OriginLive {
		t.Errorf("origin = %s, want live", rec.Origin)
	}
	// Three of the four articles mention "sale".
	if got := rec.Numeric["news_count"]; got != 3 {
		t.Errorf("news_count = %v, want 3", got)
	}
	// Mean of 0.5, -0.1 and 0.8.
	want := (0.5 - 0.1 + 0.8) / 3
	if got := rec.Numeric["news_sentiment"]; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("news_sentiment = %v, want %v", got, want)
	}
}

func TestNewsFetchNoKeywordsCountsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(archivePage))
	}))
	defer server.Close()

	src := NewNews(config.NewsConfig{BaseURL: server.URL}, testClient(t), zerolog.Nop())

	records := src.Fetch(context.Background(), testRange())
	if got := records[0].Numeric["news_count"]; got != 4 {
		t.Errorf("news_count = %v, want 4 with no keyword filter", got)
	}
}

func TestNewsFetchFailedDayFallsBack(t *testing.T) {
	// First day succeeds, every later day 404s. A partial archive must not
	// produce a partial live result.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "2026-06-01" {
			w.Write([]byte(archivePage))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewNews(config.NewsConfig{BaseURL: server.URL}, testClient(t), zerolog.Nop())

	r := testRange()
	records := src.Fetch(context.Background(), r)
	if len(records) != r.Days() {
		t.Fatalf("got %d records, want %d", len(records), r.Days())
	}
	for _, rec := range records {
		if rec.Origin != contracts.OriginFallback {
			t.Fatalf("origin = %s, want fallback", rec.Origin)
		}
	}
}

func TestNewsFallbackWeekendDip(t *testing.T) {
	src := NewNews(config.NewsConfig{}, testClient(t), zerolog.Nop())

	// Four full weeks so both weekday and weekend days are well represented.
	r := contracts.DateRange{
		From: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 6, 28, 0, 0, 0, 0, time.UTC),
	}
	records := src.Fetch(context.Background(), r)

	var weekdaySum, weekendSum float64
	var weekdayN, weekendN int
	for _, rec := range records {
		wd := rec.Timestamp.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			weekendSum += rec.Numeric["news_count"]
			weekendN++
		} else {
			weekdaySum += rec.Numeric["news_count"]
			weekdayN++
		}
	}

	if weekdaySum/float64(weekdayN) <= weekendSum/float64(weekendN) {
		t.Error("fallback news volume should dip on weekends")
	}

	for _, rec := range records {
		if s := rec.Numeric["news_sentiment"]; s < -1 || s > 1 {
			t.Errorf("sentiment %v outside [-1, 1]", s)
		}
	}
}
