package reconstruction

// ComputeSpectralFlux sums the positive per-bin magnitude increases
// between two frames. High flux marks an onset, where decoded phase is
// trusted over vocoder continuity.
func ComputeSpectralFlux(currentMag, previousMag []float64) float64 {
	flux := 0.0
	minSize := len(currentMag)
	if len(previousMag) < minSize {
		minSize = len(previousMag)
	}

	for i := 0; i < minSize; i++ {
		if diff := currentMag[i] - previousMag[i]; diff > 0 {
			flux += diff
		}
	}
	return flux
}
