package reconstruction

import (
	"math"
	"testing"
)

// valleyHistory builds a magnitude history with a sharp peak-valley-peak
// structure at bins 9..11. Frame editedFrame flattens that structure to
// the valley level, the signature damage detection looks for.
func valleyHistory(numFrames, binCount, editedFrame int) [][]float64 {
	history := make([][]float64, numFrames)
	for frame := range history {
		mags := make([]float64, binCount)
		for bin := range mags {
			mags[bin] = 0.2
		}
		mags[9] = 1.0
		mags[10] = 0.05
		mags[11] = 1.0
		if frame == editedFrame {
			mags[9] = 0.05
			mags[11] = 0.05
		}
		history[frame] = mags
	}
	return history
}

func TestDetectDamagedBinsFlagsFlattenedValley(t *testing.T) {
	history := valleyHistory(9, 20, 4)

	damaged := DetectDamagedBins(history, 4)
	if damaged == nil {
		t.Fatal("nil damage mask")
	}
	if !damaged[10] {
		t.Error("flattened valley bin 10 not flagged")
	}
	for bin := range damaged {
		if bin != 10 && damaged[bin] {
			t.Errorf("bin %d flagged, want only bin 10", bin)
		}
	}
}

func TestDetectDamagedBinsUneditedFramesClean(t *testing.T) {
	history := valleyHistory(9, 20, 4)

	for _, frame := range []int{0, 2, 8} {
		damaged := DetectDamagedBins(history, frame)
		for bin, flagged := range damaged {
			if flagged {
				t.Errorf("frame %d bin %d flagged in unedited frame", frame, bin)
			}
		}
	}
}

func TestDetectDamagedBinsDeterministic(t *testing.T) {
	history := valleyHistory(9, 20, 4)

	first := DetectDamagedBins(history, 4)
	second := DetectDamagedBins(history, 4)
	for bin := range first {
		if first[bin] != second[bin] {
			t.Fatalf("bin %d differs across identical calls", bin)
		}
	}
}

func TestDetectDamagedBinsEdgeInputs(t *testing.T) {
	if got := DetectDamagedBins(nil, 0); got != nil {
		t.Errorf("nil history returned %v", got)
	}
	if got := DetectDamagedBins([][]float64{{0.5}}, 3); got != nil {
		t.Errorf("out-of-range frame returned %v", got)
	}

	// A lone frame has no temporal context, so nothing can be flagged.
	damaged := DetectDamagedBins([][]float64{{0.1, 0.5, 0.1}}, 0)
	for bin, flagged := range damaged {
		if flagged {
			t.Errorf("bin %d flagged with no temporal context", bin)
		}
	}
}

func TestComputeDamageBlendBoundsAndCap(t *testing.T) {
	mask := make([]bool, 16)
	mask[8] = true

	weights := ComputeDamageBlend(mask, 3)
	if weights[8] != 1.0 {
		t.Errorf("damaged bin weight %g, want 1.0", weights[8])
	}
	for bin, weight := range weights {
		if weight < 0 || weight > 1 {
			t.Errorf("bin %d weight %g out of [0,1]", bin, weight)
		}
		if !mask[bin] && weight > damageWeightCap {
			t.Errorf("non-damaged bin %d weight %g above cap %g", bin, weight, damageWeightCap)
		}
	}

	// Weight should decay with distance from the damaged bin.
	if weights[9] <= weights[10] {
		t.Errorf("weights not decaying: w[9]=%g w[10]=%g", weights[9], weights[10])
	}
	if weights[12] != 0 {
		t.Errorf("bin outside blend radius has weight %g, want 0", weights[12])
	}
}

func TestComputeDamageBlendZeroRadius(t *testing.T) {
	mask := []bool{false, true, false}
	weights := ComputeDamageBlend(mask, 0)
	want := []float64{0, 1, 0}
	for bin := range want {
		if weights[bin] != want[bin] {
			t.Errorf("bin %d weight %g, want %g", bin, weights[bin], want[bin])
		}
	}
}

func TestBinSharpness(t *testing.T) {
	mags := []float64{0.2, 1.0, 0.05, 1.0, 0.2}

	if got := BinSharpness(mags, 2); math.Abs(got-0.95) > 1e-12 {
		t.Errorf("valley sharpness %g, want 0.95", got)
	}
	if got := BinSharpness(mags, 0); math.Abs(got-0.8) > 1e-12 {
		t.Errorf("edge sharpness %g, want 0.8", got)
	}
	if got := BinSharpness(nil, 0); got != 0 {
		t.Errorf("nil sharpness %g, want 0", got)
	}
}

func TestFindSpectralPeaks(t *testing.T) {
	mags := []float64{0.1, 0.9, 0.1, 0.05, 0.6, 0.1}

	peaks := FindSpectralPeaks(mags, 0.2)
	if len(peaks) != 2 || peaks[0] != 1 || peaks[1] != 4 {
		t.Errorf("peaks = %v, want [1 4]", peaks)
	}

	if got := FindSpectralPeaks([]float64{1, 2}, 0); got != nil {
		t.Errorf("short input peaks = %v, want none", got)
	}
}
