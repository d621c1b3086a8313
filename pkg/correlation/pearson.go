package correlation

import "math"

// pearson computes the Pearson correlation coefficient of two equal-length
// samples. Degenerate input (zero variance, empty) yields NaN so callers
// can discard the pair.
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if len(xs) != len(ys) || len(xs) == 0 {
		return math.NaN()
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	denom := math.Sqrt(varX * varY)
	if denom == 0 {
		return math.NaN()
	}

	return cov / denom
}

// round4 rounds a coefficient to 4 decimal places for reporting.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
