package trend

import "math"

// Volatility is the coefficient of variation of the sale prices, sample
// standard deviation over mean. Fewer than two sales, or a zero mean,
// yields 0. A value near 0 means prices barely move; above roughly 0.3
// the comps disagree enough that a single median is a shaky anchor.
func Volatility(sales []Sale) float64 {
	if len(sales) < 2 {
		return 0
	}

	var sum float64
	for _, s := range sales {
		sum += s.Price
	}
	mean := sum / float64(len(sales))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, s := range sales {
		d := s.Price - mean
		sq += d * d
	}
	variance := sq / float64(len(sales)-1)

	return math.Sqrt(variance) / mean
}
