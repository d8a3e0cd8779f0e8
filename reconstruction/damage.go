package reconstruction

import "math"

// Thresholds of the damage conjunction. Tuned for precision over recall:
// a bin is only flagged when its fine structure dropped, its level did
// not, it sits well below its spectral neighbours and those neighbours
// kept their structure. Natural smooth or quiet spectra fail at least one
// leg.
const (
	damageTemporalRadius = 3
	damageSpatialRadius  = 2
	sharpnessDropRatio   = 0.85
	magStabilityRatio    = 0.10
	magDropRatio         = 0.6
	contextSharpRatio    = 1.2
	damageWeightCap      = 0.35
)

// BinSharpness is the mean absolute magnitude gradient toward the
// immediate bin neighbours.
func BinSharpness(magnitudes []float64, bin int) float64 {
	if len(magnitudes) == 0 || bin < 0 || bin >= len(magnitudes) {
		return 0
	}

	centre := magnitudes[bin]
	gradientSum := 0.0
	samples := 0.0

	if bin > 0 {
		gradientSum += math.Abs(centre - magnitudes[bin-1])
		samples++
	}
	if bin+1 < len(magnitudes) {
		gradientSum += math.Abs(centre - magnitudes[bin+1])
		samples++
	}

	if samples == 0 {
		return 0
	}
	return gradientSum / samples
}

// DetectDamagedBins flags bins of one frame whose local time/frequency
// structure is inconsistent with their neighbourhood, the signature of a
// paint-over that kept plausible levels but flattened fine structure.
// It is a pure function of the magnitude history. An edit that freezes
// magnitudes in time but keeps the spectral profile intact is, in that
// history, identical to a genuinely steady tone and stays unflagged.
func DetectDamagedBins(allMagnitudes [][]float64, currentFrame int) []bool {
	if len(allMagnitudes) == 0 || currentFrame < 0 || currentFrame >= len(allMagnitudes) {
		return nil
	}

	currentMagnitudes := allMagnitudes[currentFrame]
	binCount := len(currentMagnitudes)
	isDamaged := make([]bool, binCount)

	frameStart := currentFrame - damageTemporalRadius
	if frameStart < 0 {
		frameStart = 0
	}
	frameEnd := currentFrame + damageTemporalRadius + 1
	if frameEnd > len(allMagnitudes) {
		frameEnd = len(allMagnitudes)
	}

	for bin := 0; bin < binCount; bin++ {
		currentMag := currentMagnitudes[bin]
		if currentMag <= minBinIntensity {
			continue
		}

		temporalSharpness := 0.0
		temporalMagnitude := 0.0
		temporalCount := 0

		for frame := frameStart; frame < frameEnd; frame++ {
			if frame == currentFrame || bin >= len(allMagnitudes[frame]) {
				continue
			}
			neighbourMag := allMagnitudes[frame][bin]
			if neighbourMag <= minBinIntensity {
				continue
			}

			temporalSharpness += BinSharpness(allMagnitudes[frame], bin)
			temporalMagnitude += neighbourMag
			temporalCount++
		}

		if temporalCount < 2 {
			continue
		}
		temporalSharpness /= float64(temporalCount)
		temporalMagnitude /= float64(temporalCount)

		currentSharpness := BinSharpness(currentMagnitudes, bin)

		contextSharpness := 0.0
		contextMagnitude := 0.0
		contextCount := 0
		for offset := -damageSpatialRadius; offset <= damageSpatialRadius; offset++ {
			if offset == 0 {
				continue
			}
			neighbourIndex := bin + offset
			if neighbourIndex < 0 || neighbourIndex >= binCount {
				continue
			}
			contextSharpness += BinSharpness(currentMagnitudes, neighbourIndex)
			contextMagnitude += currentMagnitudes[neighbourIndex]
			contextCount++
		}
		if contextCount == 0 {
			continue
		}
		avgContextSharpness := contextSharpness / float64(contextCount)
		avgContextMagnitude := contextMagnitude / float64(contextCount)

		sharpnessDrop := temporalSharpness > epsilon &&
			currentSharpness < temporalSharpness*sharpnessDropRatio
		magnitudeStable := temporalMagnitude > epsilon &&
			math.Abs(currentMag-temporalMagnitude) < temporalMagnitude*magStabilityRatio
		magnitudeBelowContext := avgContextMagnitude > epsilon &&
			currentMag < avgContextMagnitude*magDropRatio
		contextSharper := avgContextSharpness > currentSharpness*contextSharpRatio

		isDamaged[bin] = sharpnessDrop && magnitudeStable && magnitudeBelowContext && contextSharper
	}

	return isDamaged
}

// ComputeDamageBlend expands a boolean damage mask into smooth [0, 1]
// repair weights with a raised-cosine window. Damaged bins always get
// full weight; weight bleeding into non-damaged neighbours is capped so
// repair blends rather than hard-switches.
func ComputeDamageBlend(damagedBins []bool, radius int) []float64 {
	weights := make([]float64, len(damagedBins))
	if len(damagedBins) == 0 {
		return weights
	}

	if radius <= 0 {
		for i, damaged := range damagedBins {
			if damaged {
				weights[i] = 1.0
			}
		}
		return weights
	}

	denom := float64(radius) + 1.0

	for bin := range damagedBins {
		weightedSum := 0.0
		weightTotal := 0.0

		for offset := -radius; offset <= radius; offset++ {
			neighbourIndex := bin + offset
			if neighbourIndex < 0 || neighbourIndex >= len(damagedBins) {
				continue
			}

			windowWeight := 0.5 * (1.0 + math.Cos(float64(offset)*math.Pi/denom))
			weightTotal += windowWeight
			if damagedBins[neighbourIndex] {
				weightedSum += windowWeight
			}
		}

		if weightTotal > 0 {
			weights[bin] = math.Min(math.Max(weightedSum/weightTotal, 0), 1)
		}

		if damagedBins[bin] {
			weights[bin] = 1.0
		} else if weights[bin] > damageWeightCap {
			weights[bin] = damageWeightCap
		}
	}

	return weights
}

// FindSpectralPeaks returns interior local maxima above the threshold,
// in ascending bin order.
func FindSpectralPeaks(magnitudes []float64, minPeakMagnitude float64) []int {
	var peaks []int
	if len(magnitudes) < 3 {
		return peaks
	}

	for i := 1; i < len(magnitudes)-1; i++ {
		if magnitudes[i] > minPeakMagnitude &&
			magnitudes[i] > magnitudes[i-1] &&
			magnitudes[i] > magnitudes[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}
