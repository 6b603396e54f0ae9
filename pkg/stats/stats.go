// Package stats wraps the descriptive and bivariate statistics the analysis
// agents rely on. Undefined results (too few points, zero variance) are
// reported through an ok flag rather than NaN.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics of a numeric sample.
type Summary struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// Describe computes a Summary. It returns false for an empty sample.
// Std, skewness and kurtosis are zero when they are undefined.
func Describe(xs []float64) (Summary, bool) {
	if len(xs) == 0 {
		return Summary{}, false
	}
	sorted := Sorted(xs)
	m, scale := moments(xs)
	s := Summary{
		Count:  len(xs),
		Mean:   finite(scale * stat.Mean(m, nil)),
		Median: Quantile(sorted, 0.5),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q25:    Quantile(sorted, 0.25),
		Q75:    Quantile(sorted, 0.75),
	}
	if len(xs) > 1 {
		s.Std = finite(scale * stat.StdDev(m, nil))
	}
	if s.Std > 0 && len(xs) > 2 {
		s.Skewness = finite(stat.Skew(m, nil))
		s.Kurtosis = finite(stat.ExKurtosis(m, nil))
	}
	return s, true
}

// moments returns xs, or xs divided by its largest magnitude when the plain
// mean or variance would overflow, together with the divisor. Correlation,
// skewness and kurtosis do not depend on the scale.
func moments(xs []float64) ([]float64, float64) {
	if isFinite(stat.Mean(xs, nil)) && (len(xs) < 2 || isFinite(stat.Variance(xs, nil))) {
		return xs, 1
	}
	scale := floats.Norm(xs, math.Inf(1))
	if scale == 0 || !isFinite(scale) {
		return xs, 1
	}
	return floats.ScaleTo(make([]float64, len(xs)), 1/scale, xs), scale
}

// Sorted returns an ascending copy of xs.
func Sorted(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}

// Quantile returns the p-quantile of an ascending sample using linear
// interpolation between closest ranks at position (n-1)p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := float64(n-1) * p
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	if d := sorted[hi] - sorted[lo]; isFinite(d) {
		return sorted[lo] + d*frac
	}
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Fences are the IQR outlier bounds of a sample.
type Fences struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower_bound"`
	Upper float64 `json:"upper_bound"`
}

// IQRFences computes Q1/Q3 and the k*IQR fences. It needs at least
// minPoints values. Fences that overflow are clamped to the largest
// finite magnitude, which no finite value lies beyond.
func IQRFences(xs []float64, k float64, minPoints int) (Fences, bool) {
	if len(xs) < minPoints || len(xs) == 0 {
		return Fences{}, false
	}
	sorted := Sorted(xs)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := clamp(q3 - q1)
	return Fences{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: clamp(q1 - k*iqr),
		Upper: clamp(q3 + k*iqr),
	}, true
}

// Outside reports whether v lies strictly beyond the fences.
func (f Fences) Outside(v float64) bool {
	return v < f.Lower || v > f.Upper
}

// Pearson returns the correlation coefficient of two equally long samples.
// It is undefined for fewer than two points or a zero-variance sample.
func Pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	x, _ = moments(x)
	y, _ = moments(y)
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// Fit is an ordinary least-squares line y = Intercept + Slope*x.
type Fit struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
}

// At evaluates the fitted line.
func (f Fit) At(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// LinearFit regresses y on x. It is undefined for fewer than two points or
// when either variable has zero variance.
func LinearFit(x, y []float64) (Fit, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return Fit{}, false
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return Fit{}, false
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) || !isFinite(alpha) || !isFinite(beta) {
		return Fit{}, false
	}
	return Fit{Intercept: alpha, Slope: beta, RSquared: math.Max(0, math.Min(1, r2))}, true
}

// Index returns 0..n-1 as floats, the regressor for trends over row order.
func Index(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

// ZScores standardises xs with the sample standard deviation.
// It returns false when the deviation is zero or undefined.
func ZScores(xs []float64) ([]float64, bool) {
	if len(xs) < 2 {
		return nil, false
	}
	xs, _ = moments(xs)
	mean, std := stat.MeanStdDev(xs, nil)
	if std == 0 || !isFinite(std) {
		return nil, false
	}
	z := make([]float64, len(xs))
	for i, v := range xs {
		z[i] = stat.StdScore(v, mean, std)
	}
	return z, true
}

// Bin is one histogram bucket covering [Low, High).
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Histogram splits xs into n equal-width bins spanning its range.
// A constant sample produces a single bin; a range too wide to represent
// produces none.
func Histogram(xs []float64, n int) []Bin {
	if len(xs) == 0 || n < 1 {
		return nil
	}
	sorted := Sorted(xs)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []Bin{{Low: lo, High: hi, Count: len(sorted)}}
	}
	if !isFinite(hi - lo) {
		return nil
	}
	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Low: dividers[i], High: dividers[i+1], Count: int(counts[i])}
	}
	// The last edge only has to exceed hi; MaxFloat64 has no finite successor.
	if math.IsInf(bins[n-1].High, 1) {
		bins[n-1].High = hi
	}
	return bins
}

// Midpoint returns the centre of b without overflowing.
func (b Bin) Midpoint() float64 {
	return b.Low/2 + b.High/2
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v float64) float64 {
	return math.Max(-math.MaxFloat64, math.Min(math.MaxFloat64, v))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
