package reconstruction

import "math"

// slerpPhaseVectors interpolates between two phase unit vectors along the
// shorter arc. Degenerate vectors fall back to the valid side, and
// near-parallel vectors to linear interpolation plus renormalisation.
func slerpPhaseVectors(cosA, sinA, cosB, sinB, weight float64) (cosResult, sinResult float64) {
	lenA := math.Sqrt(cosA*cosA + sinA*sinA)
	lenB := math.Sqrt(cosB*cosB + sinB*sinB)

	if lenA < epsilon || lenB < epsilon {
		switch {
		case lenA >= epsilon:
			return cosA / lenA, sinA / lenA
		case lenB >= epsilon:
			return cosB / lenB, sinB / lenB
		default:
			return 1, 0
		}
	}

	nCosA, nSinA := cosA/lenA, sinA/lenA
	nCosB, nSinB := cosB/lenB, sinB/lenB

	dot := nCosA*nCosB + nSinA*nSinB
	dot = math.Min(math.Max(dot, -1), 1)
	omega := math.Acos(dot)

	if math.Abs(omega) < epsilon {
		return nCosA, nSinA
	}

	sinOmega := math.Sin(omega)
	if math.Abs(sinOmega) < epsilon {
		cosResult = (1.0-weight)*nCosA + weight*nCosB
		sinResult = (1.0-weight)*nSinA + weight*nSinB
		if length := math.Sqrt(cosResult*cosResult + sinResult*sinResult); length > epsilon {
			cosResult /= length
			sinResult /= length
		}
		return cosResult, sinResult
	}

	coeffA := math.Sin((1.0-weight)*omega) / sinOmega
	coeffB := math.Sin(weight*omega) / sinOmega
	return coeffA*nCosA + coeffB*nCosB, coeffA*nSinA + coeffB*nSinB
}

// InterpolateBoundaryPhase blends original and reconstructed phases per
// bin by transition weight, interpolating on the unit circle so the
// blend never passes through the origin. All four slices must share the
// bin count; mismatches are a no-op.
func InterpolateBoundaryPhase(phases, originalPhases, reconstructedPhases, transitionWeights []float64, binCount int) {
	if len(phases) != binCount ||
		len(originalPhases) != binCount ||
		len(reconstructedPhases) != binCount ||
		len(transitionWeights) != binCount {
		return
	}

	for bin := 0; bin < binCount; bin++ {
		weight := math.Min(math.Max(transitionWeights[bin], 0), 1)

		if weight < epsilon {
			phases[bin] = originalPhases[bin]
			continue
		}
		if weight > 1.0-epsilon {
			phases[bin] = reconstructedPhases[bin]
			continue
		}

		cosResult, sinResult := slerpPhaseVectors(
			math.Cos(originalPhases[bin]), math.Sin(originalPhases[bin]),
			math.Cos(reconstructedPhases[bin]), math.Sin(reconstructedPhases[bin]),
			weight)
		phases[bin] = math.Atan2(sinResult, cosResult)
	}
}

// ApplyTemporalPhaseCoherence nudges bins in the middle of an edit
// transition (weight between 0.05 and 0.95) toward the phase velocity
// observed over the recent frames, so the hand-off between original and
// reconstructed phase does not wobble frame to frame.
func ApplyTemporalPhaseCoherence(allPhases [][]float64, transitionWeights []float64,
	width, height int, coherenceFactor float64) {

	if len(allPhases) == 0 || width <= 0 || height <= 0 {
		return
	}
	if len(transitionWeights) != width*height {
		return
	}

	const temporalWindow = 3
	numFrames := len(allPhases)
	binCount := len(allPhases[0])

	for frame := 1; frame < numFrames; frame++ {
		for bin := 0; bin < binCount; bin++ {
			if frame >= width || bin >= height {
				continue
			}

			boundaryWeight := transitionWeights[bin*width+frame]
			if boundaryWeight < 0.05 || boundaryWeight > 0.95 {
				continue
			}

			phaseSum := 0.0
			weightSum := 0.0
			for t := 0; t < temporalWindow && frame >= t; t++ {
				temporalWeight := 1.0 / float64(t+1)
				phaseDiff := WrapToPi(allPhases[frame][bin] - allPhases[frame-t][bin])
				phaseSum += temporalWeight * phaseDiff
				weightSum += temporalWeight
			}

			if weightSum > epsilon {
				avgPhaseDiff := phaseSum / weightSum
				expectedPhase := WrapToPi(allPhases[frame-1][bin] + avgPhaseDiff)
				currentPhase := allPhases[frame][bin]

				cosResult, sinResult := slerpPhaseVectors(
					math.Cos(currentPhase), math.Sin(currentPhase),
					math.Cos(expectedPhase), math.Sin(expectedPhase),
					boundaryWeight*coherenceFactor)
				allPhases[frame][bin] = math.Atan2(sinResult, cosResult)
			}
		}
	}
}
