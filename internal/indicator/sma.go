package indicator

// SMA returns the rolling mean of prices over period bars, one value per
// full window (len(prices) - period + 1 values, oldest first).
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}

	out := make([]float64, 0, len(prices)-period+1)
	sum := windowSum(prices[:period])
	out = append(out, sum/float64(period))

	for i := period; i < len(prices); i++ {
		sum += prices[i] - prices[i-period]
		out = append(out, sum/float64(period))
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded with the mean of the first window. It has the same length as SMA.
func EMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}

	alpha := 2.0 / float64(period+1)
	out := make([]float64, 0, len(prices)-period+1)
	ema := windowSum(prices[:period]) / float64(period)
	out = append(out, ema)

	for _, p := range prices[period:] {
		ema += alpha * (p - ema)
		out = append(out, ema)
	}
	return out
}

func windowSum(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum
}
