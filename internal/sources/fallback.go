package sources

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/demandcast/backend/internal/contracts"
)

// fallbackSeed derives a stable RNG seed from the source id and requested
// range. Reruns over the same range must produce byte-identical synthetic
// data, so fallback generation never uses global randomness.
func fallbackSeed(id contracts.SourceID, r contracts.DateRange) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	h.Write([]byte(r.From.Format("2006-01-02")))
	h.Write([]byte(r.To.Format("2006-01-02")))
	return int64(h.Sum64())
}

func fallbackRand(id contracts.SourceID, r contracts.DateRange) *rand.Rand {
	return rand.New(rand.NewSource(fallbackSeed(id, r)))
}

// rangeDays expands a date range into one timestamp per day, at midnight UTC.
func rangeDays(r contracts.DateRange) []time.Time {
	if r.To.Before(r.From) {
		return nil
	}
	from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// weightedChoice picks a value from choices using cumulative probabilities.
func weightedChoice(rng *rand.Rand, choices []string, probs []float64) string {
	roll := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if roll < cum {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
