package reconstruction

import "math"

// lockRegionRadius is how far, in bins, a spectral peak pulls neighbour
// phases toward its own.
const lockRegionRadius = 4

// ApplyPhaseLocking blends the phases of bins near each spectral peak
// toward the peak's phase, weighted by relative magnitude and damage
// weight. Phases near a strong partial should track that partial; the
// pull only applies inside regions already flagged as damaged.
// Size-mismatched inputs are a no-op.
func ApplyPhaseLocking(phases []float64, magnitudes []float64, peaks []int, damageWeights []float64) {
	if len(phases) != len(damageWeights) || len(phases) != len(magnitudes) {
		return
	}

	for _, peakBin := range peaks {
		if peakBin < 0 || peakBin >= len(phases) {
			continue
		}
		if magnitudes[peakBin] <= minBinIntensity || damageWeights[peakBin] <= 0 {
			continue
		}

		peakPhase := phases[peakBin]
		startBin := peakBin - lockRegionRadius
		if startBin < 0 {
			startBin = 0
		}
		endBin := peakBin + lockRegionRadius + 1
		if endBin > len(phases) {
			endBin = len(phases)
		}

		for k := startBin; k < endBin; k++ {
			if k == peakBin || magnitudes[k] <= minBinIntensity {
				continue
			}

			blend := math.Min(math.Max(damageWeights[k], 0), 1)
			if blend <= 0 {
				continue
			}

			strength := math.Min(math.Max(magnitudes[k]/magnitudes[peakBin]*blend, 0), 1)
			phases[k] = WrapToPi(strength*phases[k] + (1.0-strength)*peakPhase)
		}
	}
}
