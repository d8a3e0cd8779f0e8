package reconstruction

import (
	"math"
	"testing"
)

func TestResampleSpectrumPassthroughWithoutShift(t *testing.T) {
	sampleRate := 8000.0
	fftSize := 16
	resolution := sampleRate / float64(fftSize)

	mags := []float64{0, 0.5, 1.0, 0.5, 0.1, 0, 0, 0, 0}
	phases := []float64{0, 0.1, 0.2, 0.3, 0.4, 0, 0, 0, 0}
	freqs := make([]float64, 9)
	for bin := range freqs {
		freqs[bin] = resolution * float64(bin)
	}

	result := ResampleSpectrum(mags, phases, freqs, sampleRate, fftSize)
	for bin := range mags {
		if result.Magnitudes[bin] != mags[bin] || result.Phases[bin] != phases[bin] {
			t.Fatalf("bin %d changed without a significant shift", bin)
		}
	}
}

func TestResampleSpectrumMovesShiftedEnergy(t *testing.T) {
	sampleRate := 8000.0
	fftSize := 16
	resolution := sampleRate / float64(fftSize)

	// Energy sits in bin 2 but its decoded frequency says bin 4: a 2x
	// pitch shift.
	mags := make([]float64, 9)
	phases := make([]float64, 9)
	freqs := make([]float64, 9)
	mags[2] = 1.0
	phases[2] = 0.6
	for bin := range freqs {
		freqs[bin] = resolution * float64(bin) * 2.0
	}

	result := ResampleSpectrum(mags, phases, freqs, sampleRate, fftSize)
	if result.Magnitudes[4] <= 0.9 {
		t.Errorf("shifted energy at bin 4 is %g, want ~1.0", result.Magnitudes[4])
	}
	if result.Magnitudes[2] > epsilon {
		t.Errorf("source bin 2 kept magnitude %g", result.Magnitudes[2])
	}
	if d := math.Abs(WrapToPi(result.Phases[4] - 0.6)); d > 1e-9 {
		t.Errorf("moved phase %g, want 0.6", result.Phases[4])
	}
}

func TestResampleSpectrumPreservesDC(t *testing.T) {
	mags := []float64{0.7, 0.5, 0.5, 0, 0}
	phases := []float64{0.2, 0, 0, 0, 0}
	freqs := []float64{0, 1500, 3000, 0, 0} // 1.5x shift at 8 kHz, fft 16

	result := ResampleSpectrum(mags, phases, freqs, 8000, 16)
	if result.Magnitudes[0] != 0.7 || result.Phases[0] != 0.2 {
		t.Errorf("DC changed: mag %g phase %g", result.Magnitudes[0], result.Phases[0])
	}
}

func TestResampleSpectrumMismatchedInput(t *testing.T) {
	mags := []float64{1, 2}
	result := ResampleSpectrum(mags, []float64{0}, []float64{0, 0}, 8000, 16)
	if &result.Magnitudes[0] != &mags[0] {
		t.Error("mismatched input should pass through unchanged")
	}
}
