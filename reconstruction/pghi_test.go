package reconstruction

import (
	"math"
	"testing"
)

func TestReconstructPhasePGHIDeterministic(t *testing.T) {
	mags := [][]float64{
		{0, 0.3, 0.9, 0.4, 0.1},
		{0, 0.4, 1.0, 0.5, 0.2},
	}
	prev := []float64{0, 0.1, 0.2, 0.3, 0.4}

	first := make([]float64, 5)
	second := make([]float64, 5)
	ReconstructPhasePGHI(mags, nil, 1, first, 1000, 4, prev)
	ReconstructPhasePGHI(mags, nil, 1, second, 1000, 4, prev)

	for bin := range first {
		if first[bin] != second[bin] {
			t.Fatalf("bin %d differs across identical runs: %g vs %g", bin, first[bin], second[bin])
		}
	}
}

func TestReconstructPhasePGHISilentBinsZero(t *testing.T) {
	mags := [][]float64{{0, 0.5, 0, 0.5, 0}}
	phases := []float64{9, 9, 9, 9, 9}

	ReconstructPhasePGHI(mags, nil, 0, phases, 1000, 4, nil)
	for _, bin := range []int{0, 2, 4} {
		if phases[bin] != 0 {
			t.Errorf("silent bin %d phase %g, want 0", bin, phases[bin])
		}
	}
}

func TestReconstructPhasePGHISeedFollowsCarryState(t *testing.T) {
	sampleRate := 1000.0
	hopSize := 4
	mags := [][]float64{{0, 0.2, 1.0, 0.2, 0.1}}
	prev := []float64{0, 0, 0.7, 0, 0}

	phases := make([]float64, 5)
	ReconstructPhasePGHI(mags, nil, 0, phases, sampleRate, hopSize, prev)

	// Seed bin 2 at nominal frequency 250 Hz: advance 2π·250·4/1000 = 2π.
	want := WrapToPi(0.7 + twoPi*250.0*4.0/1000.0)
	if d := math.Abs(WrapToPi(phases[2] - want)); d > 1e-12 {
		t.Errorf("seed phase %g, want %g", phases[2], want)
	}
}

func TestReconstructPhasePGHIConnectedBinsSmooth(t *testing.T) {
	// A smooth magnitude hump: integrated phase must not jump wildly
	// between adjacent active bins beyond the gradient plus bin advance.
	mags := [][]float64{{0.1, 0.4, 0.8, 1.0, 0.8, 0.4, 0.1}}
	phases := make([]float64, 7)
	sampleRate := 1000.0
	hopSize := 2

	ReconstructPhasePGHI(mags, nil, 0, phases, sampleRate, hopSize, nil)

	fftSize := 12.0
	binAdvance := twoPi * (sampleRate / fftSize) * float64(hopSize) / sampleRate
	for bin := 1; bin < 7; bin++ {
		jump := math.Abs(WrapToPi(phases[bin] - phases[bin-1]))
		// Largest admissible step: bin advance plus half the steepest
		// log-magnitude gradient in this spectrum.
		limit := binAdvance + 0.5*math.Abs(math.Log(0.4)-math.Log(0.1)) + 1e-9
		if jump > limit {
			t.Errorf("bins %d-%d phase jump %g exceeds %g", bin-1, bin, jump, limit)
		}
	}
}

func TestReconstructPhasePGHIEdgeInputs(t *testing.T) {
	phases := []float64{1, 2, 3}
	ReconstructPhasePGHI(nil, nil, 0, phases, 1000, 4, nil)
	if phases[0] != 1 || phases[1] != 2 || phases[2] != 3 {
		t.Error("empty history mutated phases")
	}

	ReconstructPhasePGHI([][]float64{{0.5, 0.5, 0.5}}, nil, 0, phases, 0, 4, nil)
	if phases[0] != 1 {
		t.Error("zero sample rate mutated phases")
	}
}
