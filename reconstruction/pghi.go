package reconstruction

import "math"

// ReconstructPhasePGHI rebuilds phase for one frame from magnitude alone
// using phase gradient integration (Průša et al. 2017: the frequency
// direction phase gradient equals half the log-magnitude time gradient).
// Integration expands outward from the loudest bin over a worklist; the
// seed is phase-locked to the previous output phase when carry state is
// supplied. Silent bins get phase 0 and never join the integration.
//
// phases must be pre-sized to the frame's bin count; the function is a
// no-op on empty or out-of-range input.
func ReconstructPhasePGHI(allMagnitudes, allFrequencies [][]float64,
	currentFrame int, phases []float64,
	sampleRate float64, hopSize int,
	prevOutputPhase []float64) {

	numBins := len(phases)
	if numBins == 0 || len(allMagnitudes) == 0 ||
		currentFrame < 0 || currentFrame >= len(allMagnitudes) {
		return
	}
	if sampleRate <= epsilon || hopSize <= 0 {
		return
	}

	magnitudes := allMagnitudes[currentFrame]
	if len(magnitudes) < numBins {
		return
	}
	var frequencyRow []float64
	if currentFrame < len(allFrequencies) {
		frequencyRow = allFrequencies[currentFrame]
	}

	fftSize := 2.0
	if numBins > 1 {
		fftSize = float64((numBins - 1) * 2)
	}
	freqResolution := sampleRate / fftSize
	binPhaseAdvance := twoPi * freqResolution * float64(hopSize) / sampleRate

	visited := make([]bool, numBins)
	seedBin := -1
	seedMag := 0.0
	for bin := 0; bin < numBins; bin++ {
		if magnitudes[bin] > minBinIntensity {
			if magnitudes[bin] > seedMag {
				seedMag = magnitudes[bin]
				seedBin = bin
			}
		} else {
			phases[bin] = 0
			visited[bin] = true
		}
	}
	if seedBin < 0 {
		return
	}

	seedFrequency := freqResolution * float64(seedBin)
	if seedBin < len(frequencyRow) {
		if f := frequencyRow[seedBin]; !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0 {
			seedFrequency = f
		}
	}

	if seedBin < len(prevOutputPhase) {
		seedAdvance := twoPi * seedFrequency * float64(hopSize) / sampleRate
		phases[seedBin] = WrapToPi(prevOutputPhase[seedBin] + seedAdvance)
	} else {
		phases[seedBin] = binPhaseAdvance * float64(seedBin)
	}
	visited[seedBin] = true

	logMag := func(bin int) float64 {
		return math.Log(math.Max(magnitudes[bin], epsilon))
	}

	queue := make([]int, 0, numBins)
	queue = append(queue, seedBin)
	for pos := 0; pos < len(queue); pos++ {
		currentBin := queue[pos]

		if lower := currentBin - 1; lower >= 0 && !visited[lower] && magnitudes[lower] > minBinIntensity {
			phaseGradient := 0.5 * (logMag(currentBin) - logMag(lower))
			phases[lower] = WrapToPi(phases[currentBin] - phaseGradient - binPhaseAdvance)
			visited[lower] = true
			queue = append(queue, lower)
		}

		if upper := currentBin + 1; upper < numBins && !visited[upper] && magnitudes[upper] > minBinIntensity {
			phaseGradient := 0.5 * (logMag(upper) - logMag(currentBin))
			phases[upper] = WrapToPi(phases[currentBin] + phaseGradient + binPhaseAdvance)
			visited[upper] = true
			queue = append(queue, upper)
		}
	}

	// Temporal refinement from the time-direction log-magnitude gradient.
	if currentFrame > 0 {
		prevMagnitudes := allMagnitudes[currentFrame-1]
		for bin := 0; bin < numBins && bin < len(prevMagnitudes); bin++ {
			if magnitudes[bin] > minBinIntensity && prevMagnitudes[bin] > minBinIntensity {
				timeGradient := logMag(bin) - math.Log(math.Max(prevMagnitudes[bin], epsilon))
				phases[bin] = WrapToPi(phases[bin] + 0.5*timeGradient)
			}
		}
	}
}
