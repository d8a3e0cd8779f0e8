package reconstruction

import "math"

const (
	minShiftRatio           = 0.25
	maxShiftRatio           = 4.0
	shiftDetectionThreshold = 0.02
)

// ResampledSpectrum is the output of ResampleSpectrum.
type ResampledSpectrum struct {
	Magnitudes []float64
	Phases     []float64
}

// ResampleSpectrum moves the energy of bins whose decoded frequency
// disagrees with their nominal bin-centre frequency back to where that
// frequency says it belongs, splitting each bin between the two nearest
// target bins and circularly averaging phase by magnitude. Frames with
// no shift beyond the detection threshold pass through untouched.
func ResampleSpectrum(magnitudes, phases, decodedFrequencies []float64,
	sampleRate float64, fftSize int) ResampledSpectrum {

	numBins := len(magnitudes)
	if numBins == 0 || len(phases) != numBins || len(decodedFrequencies) != numBins {
		return ResampledSpectrum{Magnitudes: magnitudes, Phases: phases}
	}

	freqResolution := 1.0
	if fftSize > 0 && sampleRate > 0 {
		freqResolution = sampleRate / float64(fftSize)
	}

	shiftRatios := make([]float64, numBins)
	for i := range shiftRatios {
		shiftRatios[i] = 1.0
	}
	hasSignificantShift := false

	for bin := 1; bin < numBins; bin++ {
		expectedFreq := freqResolution * float64(bin)
		decodedFreq := decodedFrequencies[bin]
		if expectedFreq > epsilon && decodedFreq > epsilon {
			ratio := decodedFreq / expectedFreq
			shiftRatios[bin] = math.Min(math.Max(ratio, minShiftRatio), maxShiftRatio)
			if math.Abs(ratio-1.0) > shiftDetectionThreshold {
				hasSignificantShift = true
			}
		}
	}

	if !hasSignificantShift {
		return ResampledSpectrum{Magnitudes: magnitudes, Phases: phases}
	}

	accumulatedMag := make([]float64, numBins)
	accumulatedPhaseX := make([]float64, numBins)
	accumulatedPhaseY := make([]float64, numBins)
	accumulatedWeight := make([]float64, numBins)

	for srcBin := 1; srcBin < numBins; srcBin++ {
		mag := magnitudes[srcBin]
		if mag < epsilon {
			continue
		}

		targetBinF := float64(srcBin) * shiftRatios[srcBin]
		if targetBinF < 0.5 || targetBinF >= float64(numBins)-0.5 {
			continue
		}

		targetBinLow := int(math.Floor(targetBinF))
		targetBinHigh := targetBinLow + 1
		fracHigh := targetBinF - float64(targetBinLow)
		fracLow := 1.0 - fracHigh

		phaseX := math.Cos(phases[srcBin])
		phaseY := math.Sin(phases[srcBin])

		if targetBinLow > 0 && targetBinLow < numBins {
			accumulatedMag[targetBinLow] += mag * fracLow
			accumulatedPhaseX[targetBinLow] += phaseX * mag * fracLow
			accumulatedPhaseY[targetBinLow] += phaseY * mag * fracLow
			accumulatedWeight[targetBinLow] += fracLow
		}
		if targetBinHigh > 0 && targetBinHigh < numBins {
			accumulatedMag[targetBinHigh] += mag * fracHigh
			accumulatedPhaseX[targetBinHigh] += phaseX * mag * fracHigh
			accumulatedPhaseY[targetBinHigh] += phaseY * mag * fracHigh
			accumulatedWeight[targetBinHigh] += fracHigh
		}
	}

	result := ResampledSpectrum{
		Magnitudes: make([]float64, numBins),
		Phases:     make([]float64, numBins),
	}
	result.Magnitudes[0] = magnitudes[0]
	result.Phases[0] = phases[0]

	for bin := 1; bin < numBins; bin++ {
		if accumulatedWeight[bin] > epsilon {
			result.Magnitudes[bin] = accumulatedMag[bin]
			result.Phases[bin] = math.Atan2(accumulatedPhaseY[bin], accumulatedPhaseX[bin])
		}
	}

	return result
}
