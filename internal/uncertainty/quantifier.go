// Package uncertainty estimates prediction intervals from the ensemble's
// out-of-sample residual behaviour.
package uncertainty

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/contracts"
)

// Quantifier turns a point forecast and a residual history into prediction
// intervals at requested quantile levels.
type Quantifier struct {
	log zerolog.Logger
}

// New creates a quantifier.
func New(log zerolog.Logger) *Quantifier {
	return &Quantifier{log: log.With().Str("component", "uncertainty.quantifier").Logger()}
}

// Quantify computes, for each requested level q, the interval
//
//	point ± |z(q)| * sigma * sqrt(step)
//
// where sigma is the residual standard deviation and z the standard normal
// quantile. Width is zero at q=0.5 (the median pins to the point forecast)
// and non-decreasing in horizon step. lower <= point <= upper always holds.
func (q *Quantifier) Quantify(points []float64, residuals []float64, levels []float64) map[float64]contracts.Interval {
	sigma := residualStd(residuals)

	intervals := make(map[float64]contracts.Interval, len(levels))
	for _, level := range levels {
		z := math.Abs(normalQuantile(level))

		lower := make([]float64, len(points))
		upper := make([]float64, len(points))
		for step, p := range points {
			width := z * sigma * math.Sqrt(float64(step+1))
			lower[step] = p - width
			upper[step] = p + width
		}
		intervals[level] = contracts.Interval{Lower: lower, Upper: upper}
	}

	q.log.Debug().
		Float64("residual_std", sigma).
		Int("levels", len(levels)).
		Int("steps", len(points)).
		Msg("prediction intervals computed")

	return intervals
}

// residualStd returns the standard deviation of the residuals, with a
// conservative default when there is no residual history to learn from.
func residualStd(residuals []float64) float64 {
	if len(residuals) < 2 {
		return 1.0
	}

	var mean float64
	for _, r := range residuals {
		mean += r
	}
	mean /= float64(len(residuals))

	var ss float64
	for _, r := range residuals {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss / float64(len(residuals)-1))
}

// normalQuantile is the Acklam rational approximation to the standard
// normal inverse CDF, accurate to ~1e-9 over (0, 1).
func normalQuantile(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	if p == 0.5 {
		return 0
	}

	a := []float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02, 1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := []float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02, 6.680131188771972e+01, -1.328068155288572e+01}
	c := []float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00, -2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := []float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00, 3.754408661907416e+00}

	const pLow = 0.02425
	const pHigh = 1 - pLow

	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p <= pHigh:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	default:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}
}
