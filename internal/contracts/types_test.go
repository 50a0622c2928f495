package contracts

import (
	"reflect"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateRangeDays(t *testing.T) {
	tests := []struct {
		name string
		r    DateRange
		want int
	}{
		{"single day", DateRange{From: day(2026, 1, 1), To: day(2026, 1, 1)}, 1},
		{"one week", DateRange{From: day(2026, 1, 1), To: day(2026, 1, 7)}, 7},
		{"inverted", DateRange{From: day(2026, 1, 7), To: day(2026, 1, 1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Days(); got != tt.want {
				t.Errorf("Days() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSeriesRange(t *testing.T) {
	s := Series{
		{Timestamp: day(2026, 3, 1), Target: 10},
		{Timestamp: day(2026, 3, 2), Target: 11},
		{Timestamp: day(2026, 3, 3), Target: 12},
	}

	r := s.Range()
	if !r.From.Equal(day(2026, 3, 1)) || !r.To.Equal(day(2026, 3, 3)) {
		t.Errorf("Range() = %v..%v, want 2026-03-01..2026-03-03", r.From, r.To)
	}

	if got := (Series{}).Range(); !got.From.IsZero() || !got.To.IsZero() {
		t.Errorf("empty series Range() = %v, want zero range", got)
	}
}

func TestFeatureProvenanceTag(t *testing.T) {
	tests := []struct {
		name string
		prov FeatureProvenance
		want string
	}{
		{"historical", FeatureProvenance{Base: "target", Origin: FeatureHistorical}, "historical"},
		{"external live", FeatureProvenance{Base: "avg_temp", Origin: FeatureExternal, Source: "weather"}, "external:weather"},
		{"external fallback", FeatureProvenance{Base: "avg_temp", Origin: FeatureExternal, Source: "weather", Fallback: true}, "external:weather(fallback)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prov.Tag(); got != tt.want {
				t.Errorf("Tag() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFeatureTableVector(t *testing.T) {
	table := &FeatureTable{
		Names: []string{"a", "b", "c"},
		Rows: []FeatureRow{
			{Target: 1, Features: map[string]float64{"a": 10, "b": 20, "c": 30}},
			{Target: 2, Features: map[string]float64{"a": 11, "b": 21, "c": 31}},
		},
	}

	if got := table.Vector(0); !reflect.DeepEqual(got, []float64{10, 20, 30}) {
		t.Errorf("Vector(0) = %v, want [10 20 30]", got)
	}
	if got := table.LastVector(); !reflect.DeepEqual(got, []float64{11, 21, 31}) {
		t.Errorf("LastVector() = %v, want [11 21 31]", got)
	}
	if got := (&FeatureTable{}).LastVector(); got != nil {
		t.Errorf("empty LastVector() = %v, want nil", got)
	}
}

func TestFeatureTableSlice(t *testing.T) {
	table := &FeatureTable{
		Names: []string{"a"},
		Rows: []FeatureRow{
			{Target: 1, Features: map[string]float64{"a": 1}},
			{Target: 2, Features: map[string]float64{"a": 2}},
			{Target: 3, Features: map[string]float64{"a": 3}},
		},
	}

	sub := table.Slice(0, 2)
	if len(sub.Rows) != 2 {
		t.Fatalf("Slice(0,2) has %d rows, want 2", len(sub.Rows))
	}
	if sub.Rows[1].Target != 2 {
		t.Errorf("Slice(0,2) last target = %v, want 2", sub.Rows[1].Target)
	}
	if len(sub.Names) != 1 {
		t.Errorf("slice must keep the feature names")
	}
}

func TestEnrichedDatasetExternalColumns(t *testing.T) {
	ds := &EnrichedDataset{
		Columns: map[string]ColumnInfo{
			"web_traffic": {Source: "analytics", Kind: FieldNumeric, Origin: OriginLive},
			"avg_temp":    {Source: "weather", Kind: FieldNumeric, Origin: OriginFallback},
			"news_count":  {Source: "news", Kind: FieldNumeric, Origin: OriginFallback},
		},
	}

	want := []string{"avg_temp", "news_count", "web_traffic"}
	if got := ds.ExternalColumns(); !reflect.DeepEqual(got, want) {
		t.Errorf("ExternalColumns() = %v, want %v", got, want)
	}

	wantFallback := []SourceID{"news", "weather"}
	if got := ds.FallbackSources(); !reflect.DeepEqual(got, wantFallback) {
		t.Errorf("FallbackSources() = %v, want %v", got, wantFallback)
	}
}
