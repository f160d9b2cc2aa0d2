// Package indicator holds price-series filters.
package indicator

// Deltas returns the differences between consecutive prices.
// Returns slice of length: len(prices) - 1
func Deltas(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	result := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		result = append(result, prices[i]-prices[i-1])
	}
	return result
}

// ConsecutiveRise reports whether the last window closes rise strictly at
// every step. ok is false when there are fewer than minRows closes, which
// callers treat as insufficient data rather than "no rise".
func ConsecutiveRise(closes []float64, window, minRows int) (flag, ok bool) {
	if len(closes) < minRows || window < 2 || len(closes) < window {
		return false, false
	}
	for _, d := range Deltas(closes[len(closes)-window:]) {
		if d <= 0 {
			return false, true
		}
	}
	return true, true
}
