package reconstruction

import "math"

// AlignReconstructedPhase pulls reconstructed phases toward the
// trajectory a phase vocoder would predict from the previous output
// frame, blended per bin by damage weight. Edited-region phase then
// continues the unedited trajectory instead of jumping discontinuously.
// Size-mismatched inputs are a no-op.
func AlignReconstructedPhase(reconPhases []float64, prevOutputPhase []float64,
	frequencies []float64, damageWeights []float64,
	sampleRate float64, hopSize int) {

	if len(reconPhases) != len(prevOutputPhase) || len(reconPhases) != len(damageWeights) {
		return
	}

	numBins := len(reconPhases)
	fftSize := 2.0
	if numBins > 1 {
		fftSize = float64((numBins - 1) * 2)
	}
	if sampleRate <= epsilon || hopSize <= 0 {
		return
	}

	hop := float64(hopSize)
	for bin := 0; bin < numBins; bin++ {
		weight := math.Min(math.Max(damageWeights[bin], 0), 1)
		if weight <= 0 {
			continue
		}

		frequency := sampleRate / fftSize * float64(bin)
		if bin < len(frequencies) {
			if f := frequencies[bin]; !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0 {
				frequency = f
			}
		}

		expectedAdvance := twoPi * frequency * hop / sampleRate
		expectedPhase := WrapToPi(prevOutputPhase[bin] + expectedAdvance)
		delta := WrapToPi(expectedPhase - reconPhases[bin])
		reconPhases[bin] = WrapToPi(reconPhases[bin] + delta*weight)
	}
}
