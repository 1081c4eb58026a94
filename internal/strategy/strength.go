package strategy

import (
	"fmt"
	"math"

	"github.com/newthinker/rotator/internal/config"
)

// Strengths maps the momenta of the selected assets (in rank order) to
// strengths in [0,1] using the named policy. Every policy depends only on
// momentum relative to the threshold or to the other selected assets, so
// shifting threshold and momenta together never changes the result.
func Strengths(method config.StrengthMethod, momenta []float64, threshold, scaleRange float64) ([]float64, error) {
	out := make([]float64, len(momenta))
	if len(momenta) == 0 {
		return out, nil
	}

	switch method {
	case config.StrengthBinary:
		for i := range out {
			out[i] = 1.0
		}

	case config.StrengthLinear:
		if !(scaleRange > 0) || math.IsInf(scaleRange, 0) {
			return nil, fmt.Errorf("linear strength needs a positive scale range, got %f", scaleRange)
		}
		for i, m := range momenta {
			out[i] = clamp01((m - threshold) / scaleRange)
		}

	case config.StrengthProportional:
		var total float64
		for _, m := range momenta {
			total += math.Abs(m)
		}
		for i, m := range momenta {
			if total > 0 {
				out[i] = math.Abs(m) / total
			} else {
				out[i] = 1 / float64(len(momenta))
			}
		}

	case config.StrengthMomentumRatio:
		top := momenta[0]
		for _, m := range momenta[1:] {
			top = math.Max(top, m)
		}
		for i, m := range momenta {
			if top > 0 {
				out[i] = clamp01(m / top)
			} else {
				// nothing to scale against
				out[i] = 1.0
			}
		}

	default:
		return nil, fmt.Errorf("unknown strength method: %q", method)
	}

	return out, nil
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
