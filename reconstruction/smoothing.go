package reconstruction

import "math"

const (
	smoothingMomentum = 0.95
	smoothingRatio    = 0.7
	// Adjacent-bin jumps beyond this fraction of π are treated as
	// integration artefacts and repaired.
	discontinuityRatio = 0.9
)

// SmoothPhase relaxes a reconstructed phase field with iterative
// magnitude-weighted neighbour averaging. The over-relaxation momentum is
// applied to the wrapped per-pass delta, not the absolute phase, which
// accelerates convergence without collapsing onto a constant. A final
// pass repairs residual adjacent-bin discontinuities.
func SmoothPhase(phases []float64, targetMagnitudes []float64, iterations int) {
	if len(phases) != len(targetMagnitudes) || len(phases) == 0 {
		return
	}

	for iter := 0; iter < iterations; iter++ {
		newPhase := make([]float64, len(phases))
		copy(newPhase, phases)

		for bin := 1; bin < len(phases)-1; bin++ {
			if targetMagnitudes[bin] <= minBinIntensity {
				continue
			}

			phaseSum := 0.0
			weightSum := 0.0

			if targetMagnitudes[bin-1] > minBinIntensity {
				weight := targetMagnitudes[bin-1]
				phaseSum += phases[bin-1] * weight
				weightSum += weight
			}
			if targetMagnitudes[bin+1] > minBinIntensity {
				weight := targetMagnitudes[bin+1]
				phaseSum += phases[bin+1] * weight
				weightSum += weight
			}

			centreWeight := targetMagnitudes[bin] * 2.0
			phaseSum += phases[bin] * centreWeight
			weightSum += centreWeight

			if weightSum > 0 {
				smoothedPhase := phaseSum / weightSum
				newPhase[bin] = WrapToPi(smoothingRatio*smoothedPhase + (1.0-smoothingRatio)*phases[bin])
			}
		}

		for bin := range phases {
			delta := WrapToPi(newPhase[bin] - phases[bin])
			phases[bin] = WrapToPi(phases[bin] + delta*(1.0+smoothingMomentum))
		}
	}

	for bin := 1; bin < len(phases); bin++ {
		if targetMagnitudes[bin] > minBinIntensity && targetMagnitudes[bin-1] > minBinIntensity {
			phaseDiff := WrapToPi(phases[bin] - phases[bin-1])
			if math.Abs(phaseDiff) > math.Pi*discontinuityRatio {
				phases[bin] = WrapToPi(phases[bin-1] + math.Pi*0.5)
			}
		}
	}
}
