// Package scenario applies what-if adjustments to a baseline forecast and
// measures their impact against it.
package scenario

// Scenario describes one set of what-if adjustments. Zero-valued knobs are
// inactive.
type Scenario struct {
	Name string

	// PriceChange is a fractional price move, e.g. 0.10 for +10%. Demand
	// responds through PriceElasticity, which defaults to -0.5 when left
	// unset.
	PriceChange     float64
	PriceElasticity float64

	// DemandMultiplier scales every step, e.g. 1.2 for a 20% lift.
	DemandMultiplier float64

	// SeasonalBoost is a fractional lift that decays over the horizon,
	// modelling a promotion whose effect fades.
	SeasonalBoost float64

	// EconomicImpact is a flat fractional shift from macro conditions.
	EconomicImpact float64
}

const defaultElasticity = -0.5

// Impact summarizes the difference between an adjusted forecast and its
// baseline. Percent values are relative to the baseline; steps where the
// baseline is zero contribute zero percent.
type Impact struct {
	TotalAbsolute   float64   `json:"total_absolute"`
	AverageAbsolute float64   `json:"average_absolute"`
	AveragePercent  float64   `json:"average_percent"`
	StepAbsolute    []float64 `json:"step_absolute"`
	StepPercent     []float64 `json:"step_percent"`
}

// Result pairs an adjusted forecast with its baseline and impact analysis.
type Result struct {
	Name     string    `json:"name"`
	Baseline []float64 `json:"baseline"`
	Adjusted []float64 `json:"adjusted"`
	Impact   Impact    `json:"impact"`
}

// Run applies the scenario to the baseline forecast and packages the
// adjusted forecast with its impact analysis. The baseline is not modified.
func Run(baseline []float64, s Scenario) *Result {
	name := s.Name
	if name == "" {
		name = "unnamed"
	}
	adjusted := Apply(baseline, s)
	return &Result{
		Name:     name,
		Baseline: baseline,
		Adjusted: adjusted,
		Impact:   Analyze(baseline, adjusted),
	}
}

// Apply returns a copy of baseline with every active adjustment applied.
func Apply(baseline []float64, s Scenario) []float64 {
	adjusted := make([]float64, len(baseline))
	copy(adjusted, baseline)
	horizon := len(adjusted)

	if s.PriceChange != 0 {
		elasticity := s.PriceElasticity
		if elasticity == 0 {
			elasticity = defaultElasticity
		}
		factor := 1 + elasticity*s.PriceChange
		for i := range adjusted {
			adjusted[i] *= factor
		}
	}

	if s.DemandMultiplier != 0 {
		for i := range adjusted {
			adjusted[i] *= s.DemandMultiplier
		}
	}

	if s.SeasonalBoost != 0 {
		for i := range adjusted {
			decay := 1 - float64(i)/float64(horizon)*0.5
			if decay < 0.1 {
				decay = 0.1
			}
			adjusted[i] *= 1 + s.SeasonalBoost*decay
		}
	}

	if s.EconomicImpact != 0 {
		for i := range adjusted {
			adjusted[i] *= 1 + s.EconomicImpact
		}
	}

	return adjusted
}

// Analyze measures adjusted against baseline step by step.
func Analyze(baseline, adjusted []float64) Impact {
	imp := Impact{
		StepAbsolute: make([]float64, len(baseline)),
		StepPercent:  make([]float64, len(baseline)),
	}

	var pctSum float64
	for i := range baseline {
		diff := adjusted[i] - baseline[i]
		imp.StepAbsolute[i] = diff
		if baseline[i] != 0 {
			imp.StepPercent[i] = diff / baseline[i] * 100
		}
		imp.TotalAbsolute += diff
		pctSum += imp.StepPercent[i]
	}

	if n := len(baseline); n > 0 {
		imp.AverageAbsolute = imp.TotalAbsolute / float64(n)
		imp.AveragePercent = pctSum / float64(n)
	}
	return imp
}
