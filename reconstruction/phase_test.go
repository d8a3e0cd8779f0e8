package reconstruction

import (
	"math"
	"testing"
)

func TestWrapToPi(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{1.5, 1.5},
		{-1.5, -1.5},
		{math.Pi + 0.1, -math.Pi + 0.1},
		{-math.Pi - 0.1, math.Pi - 0.1},
		{5 * math.Pi, -math.Pi},
	}
	for _, tc := range cases {
		if got := WrapToPi(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("WrapToPi(%g) = %g, want %g", tc.in, got, tc.want)
		}
	}

	for _, v := range []float64{-100, -3.2, 0.001, 7, 1234.5} {
		got := WrapToPi(v)
		if got <= -math.Pi-1e-12 || got > math.Pi+1e-12 {
			t.Errorf("WrapToPi(%g) = %g, outside (-π, π]", v, got)
		}
	}
}

func TestComputeSpectralFlux(t *testing.T) {
	flux := ComputeSpectralFlux([]float64{0.5, 0.2, 0.9}, []float64{0.1, 0.4, 0.3})
	// Only the rising bins count: 0.4 + 0.6.
	if math.Abs(flux-1.0) > 1e-12 {
		t.Errorf("flux %g, want 1.0", flux)
	}

	if got := ComputeSpectralFlux(nil, []float64{1}); got != 0 {
		t.Errorf("empty flux %g, want 0", got)
	}
	if got := ComputeSpectralFlux([]float64{0.1}, []float64{0.5}); got != 0 {
		t.Errorf("falling-only flux %g, want 0", got)
	}
}

func TestSmoothPhaseConstantFieldUnchanged(t *testing.T) {
	phases := []float64{0.4, 0.4, 0.4, 0.4, 0.4}
	mags := []float64{0.5, 0.5, 0.5, 0.5, 0.5}

	SmoothPhase(phases, mags, 3)
	for bin, phase := range phases {
		if math.Abs(phase-0.4) > 1e-9 {
			t.Errorf("bin %d drifted to %g from constant 0.4", bin, phase)
		}
	}
}

func TestSmoothPhaseRepairsDiscontinuity(t *testing.T) {
	phases := []float64{0, math.Pi * 0.95}
	mags := []float64{0.5, 0.5}

	// Zero iterations isolates the final discontinuity pass.
	SmoothPhase(phases, mags, 0)
	if math.Abs(phases[1]-math.Pi*0.5) > 1e-12 {
		t.Errorf("discontinuous bin repaired to %g, want π/2", phases[1])
	}
}

func TestSmoothPhaseSkipsSilentBins(t *testing.T) {
	phases := []float64{0.1, 2.0, 0.1}
	mags := []float64{0.5, 0, 0.5}

	SmoothPhase(phases, mags, 3)
	if phases[1] != 2.0 {
		t.Errorf("silent bin phase changed to %g", phases[1])
	}
}

func TestAlignReconstructedPhasePullsTowardPrediction(t *testing.T) {
	sampleRate := 1000.0
	hopSize := 4
	// One bin spectrum layouts: 5 bins, fftSize 8, bin 1 at 125 Hz.
	prev := []float64{0, 0.2, 0, 0, 0}
	freqs := []float64{0, 125, 0, 0, 0}
	expected := WrapToPi(0.2 + twoPi*125*4/1000)

	full := []float64{0, 1.7, 0, 0, 0}
	weights := []float64{0, 1, 0, 0, 0}
	AlignReconstructedPhase(full, prev, freqs, weights, sampleRate, hopSize)
	if d := math.Abs(WrapToPi(full[1] - expected)); d > 1e-12 {
		t.Errorf("fully weighted bin %g, want prediction %g", full[1], expected)
	}

	half := []float64{0, 1.7, 0, 0, 0}
	weights[1] = 0.5
	AlignReconstructedPhase(half, prev, freqs, weights, sampleRate, hopSize)
	wantHalf := WrapToPi(1.7 + WrapToPi(expected-1.7)*0.5)
	if d := math.Abs(WrapToPi(half[1] - wantHalf)); d > 1e-12 {
		t.Errorf("half weighted bin %g, want midpoint %g", half[1], wantHalf)
	}

	zero := []float64{0, 1.7, 0, 0, 0}
	weights[1] = 0
	AlignReconstructedPhase(zero, prev, freqs, weights, sampleRate, hopSize)
	if zero[1] != 1.7 {
		t.Errorf("unweighted bin changed to %g", zero[1])
	}
}

func TestAlignReconstructedPhaseSizeMismatchNoOp(t *testing.T) {
	phases := []float64{1, 2}
	AlignReconstructedPhase(phases, []float64{0}, nil, []float64{1, 1}, 1000, 4)
	if phases[0] != 1 || phases[1] != 2 {
		t.Error("size-mismatched call mutated phases")
	}
}

func TestApplyPhaseLockingPullsNeighboursTowardPeak(t *testing.T) {
	phases := []float64{0, 1.0, 0.2, 1.0, 0}
	mags := []float64{0, 0.1, 1.0, 0.1, 0}
	weights := []float64{1, 1, 1, 1, 1}

	ApplyPhaseLocking(phases, mags, []int{2}, weights)

	// strength = (0.1/1.0)·1 = 0.1, so neighbours move most of the way to
	// the peak phase 0.2.
	want := WrapToPi(0.1*1.0 + 0.9*0.2)
	for _, bin := range []int{1, 3} {
		if d := math.Abs(WrapToPi(phases[bin] - want)); d > 1e-12 {
			t.Errorf("bin %d phase %g, want %g", bin, phases[bin], want)
		}
	}
	if phases[2] != 0.2 {
		t.Errorf("peak phase changed to %g", phases[2])
	}
}

func TestApplyPhaseLockingRespectsZeroWeight(t *testing.T) {
	phases := []float64{0, 1.0, 0.2, 1.0, 0}
	mags := []float64{0, 0.1, 1.0, 0.1, 0}
	weights := []float64{0, 0, 0, 0, 0}

	ApplyPhaseLocking(phases, mags, []int{2}, weights)
	if phases[1] != 1.0 || phases[3] != 1.0 {
		t.Error("zero-weight bins were pulled toward the peak")
	}
}
