package indicator

import "math"

// TrailingReturn computes prices[last] / prices[last-lookback] - 1.
// ok is false when fewer than lookback+1 prices exist or either endpoint
// is not a positive finite number.
func TrailingReturn(prices []float64, lookback int) (float64, bool) {
	if lookback < 1 || len(prices) < lookback+1 {
		return 0, false
	}
	last := prices[len(prices)-1]
	base := prices[len(prices)-1-lookback]
	if !usable(last) || !usable(base) {
		return 0, false
	}
	return last/base - 1, true
}

// Distance returns prices[last] / average - 1 for the final value of a
// moving average series such as SMA or EMA.
func Distance(prices []float64, average []float64) (float64, bool) {
	if len(prices) == 0 || len(average) == 0 {
		return 0, false
	}
	last := prices[len(prices)-1]
	avg := average[len(average)-1]
	if !usable(last) || !usable(avg) {
		return 0, false
	}
	return last/avg - 1, true
}

func usable(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
