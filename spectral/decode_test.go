package spectral

import (
	"math"
	"testing"
)

// steadyImage encodes numFrames identical frames of a fixed spectrum.
// Nothing in it looks edited, so the orchestrator should pass decoded
// phase through the vocoder path untouched.
func steadyImage(codec *Codec, numFrames int, magnitudes, phases []float64, sampleRate float64) *ColourNativeImage {
	samples := make([]AudioColourSample, numFrames)
	for frame := range samples {
		samples[frame] = AudioColourSample{
			Magnitudes: [][]float64{magnitudes},
			Phases:     [][]float64{phases},
			SampleRate: sampleRate,
		}
	}
	return codec.Encode(samples, AudioMetadata{SampleRate: sampleRate}, nil)
}

func TestDecodeEmptyImage(t *testing.T) {
	cfg := DefaultConfig()
	codec := NewCodec(cfg)

	final := -1.0
	result := codec.Decode(nil, DecodeOptions{
		OnProgress: func(fraction float64) { final = fraction },
	})

	if len(result.Samples) != 0 {
		t.Errorf("nil image decoded to %d samples, want 0", len(result.Samples))
	}
	if final != 1.0 {
		t.Errorf("final progress %g, want 1.0", final)
	}
	if result.SampleRate != cfg.DefaultSampleRate {
		t.Errorf("sample rate %g, want default %g", result.SampleRate, cfg.DefaultSampleRate)
	}
}

func TestDecodeSteadySignalPreservesContent(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	sampleRate := 1000.0
	hopSize := 4
	magnitudes := []float64{0, 0.5, 1.0, 0.8, 0.3}
	phases := []float64{0, 0.3, 0.3, 0.3, 0.3}

	img := steadyImage(codec, 12, magnitudes, phases, sampleRate)
	result := codec.Decode(img, DecodeOptions{SampleRate: sampleRate, HopSize: hopSize})

	if len(result.Samples) != 12 {
		t.Fatalf("decoded %d frames, want 12", len(result.Samples))
	}
	if result.Channels != 1 || result.BinCount != 5 {
		t.Fatalf("layout %d channels x %d bins, want 1x5", result.Channels, result.BinCount)
	}

	for frame, sample := range result.Samples {
		wantTimestamp := float64(frame) * float64(hopSize) / sampleRate
		if math.Abs(sample.Timestamp-wantTimestamp) > 1e-12 {
			t.Errorf("frame %d timestamp %g, want %g", frame, sample.Timestamp, wantTimestamp)
		}

		for bin := 1; bin < 5; bin++ {
			if rel := math.Abs(sample.Magnitudes[0][bin]-magnitudes[bin]) / magnitudes[bin]; rel > 1e-9 {
				t.Errorf("frame %d bin %d magnitude %g, want %g",
					frame, bin, sample.Magnitudes[0][bin], magnitudes[bin])
			}
			if d := wrapDelta(sample.Phases[0][bin], 0.3); d > 1e-6 {
				t.Errorf("frame %d bin %d phase %g, want 0.3 (err %g)",
					frame, bin, sample.Phases[0][bin], d)
			}
		}
		if sample.Phases[0][0] != 0 {
			t.Errorf("frame %d silent DC phase %g, want 0", frame, sample.Phases[0][0])
		}
	}
}

// valleySequence encodes numFrames frames of a sharp peak-valley-peak
// spectrum around bin 10. At editFrame the valley bin's phase is replaced
// with an incoherent value; flattenPeaks additionally drops the peaks to
// the valley level, the structure damage detection keys on.
func valleySequence(codec *Codec, numFrames, editFrame int, flattenPeaks bool, sampleRate float64) *ColourNativeImage {
	samples := make([]AudioColourSample, numFrames)
	for frame := range samples {
		mags := make([]float64, 20)
		phases := make([]float64, 20)
		for bin := range mags {
			mags[bin] = 0.2
			phases[bin] = 0.3
		}
		mags[9], mags[10], mags[11] = 1.0, 0.05, 1.0
		if frame == editFrame {
			phases[10] = 2.9
			if flattenPeaks {
				mags[9], mags[11] = 0.05, 0.05
			}
		}
		samples[frame] = AudioColourSample{
			Magnitudes: [][]float64{mags},
			Phases:     [][]float64{phases},
			SampleRate: sampleRate,
		}
	}
	return codec.Encode(samples, AudioMetadata{SampleRate: sampleRate, NumChannels: 1}, nil)
}

func TestDecodeSuppressesIncoherentPhaseInDamagedFrame(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	sampleRate := 1000.0
	hopSize := 4
	editFrame := 4
	rawPhase := 2.9

	damaged := codec.Decode(valleySequence(codec, 9, editFrame, true, sampleRate),
		DecodeOptions{SampleRate: sampleRate, HopSize: hopSize})
	control := codec.Decode(valleySequence(codec, 9, editFrame, false, sampleRate),
		DecodeOptions{SampleRate: sampleRate, HopSize: hopSize})

	if len(damaged.Samples) != 9 || len(control.Samples) != 9 {
		t.Fatalf("decoded %d/%d frames, want 9", len(damaged.Samples), len(control.Samples))
	}

	// With intact peaks nothing is flagged and the vocoder update tracks
	// the decoded phase exactly, incoherent jump included.
	controlDev := wrapDelta(control.Samples[editFrame].Phases[0][10], rawPhase)
	if controlDev > 1e-3 {
		t.Errorf("control output drifted %g from its decoded phase, want pass-through", controlDev)
	}

	// With the peaks flattened the valley bin is flagged, the incoherent
	// phase is rejected and the prediction wins.
	damagedDev := wrapDelta(damaged.Samples[editFrame].Phases[0][10], rawPhase)
	if damagedDev < controlDev+0.5 {
		t.Errorf("flattened-frame output tracked the incoherent phase: deviation %g vs control %g",
			damagedDev, controlDev)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	magnitudes := []float64{0, 0.5, 1.0, 0.8, 0.3}
	phases := []float64{0, 0.3, -0.7, 1.2, 2.5}
	img := steadyImage(codec, 20, magnitudes, phases, 1000)

	first := codec.Decode(img, DecodeOptions{SampleRate: 1000})
	second := codec.Decode(img, DecodeOptions{SampleRate: 1000})

	if len(first.Samples) != len(second.Samples) {
		t.Fatalf("frame counts differ: %d vs %d", len(first.Samples), len(second.Samples))
	}
	for frame := range first.Samples {
		for bin := range first.Samples[frame].Phases[0] {
			a := first.Samples[frame].Phases[0][bin]
			b := second.Samples[frame].Phases[0][bin]
			if a != b {
				t.Fatalf("frame %d bin %d differs across runs: %g vs %g", frame, bin, a, b)
			}
		}
	}
}

func TestDecodeTwoChannels(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	sampleRate := 1000.0

	samples := make([]AudioColourSample, 6)
	for frame := range samples {
		samples[frame] = AudioColourSample{
			Magnitudes: [][]float64{
				{0, 0.9, 0.2, 0.2, 0.2},
				{0, 0.2, 0.2, 0.2, 0.9},
			},
			Phases: [][]float64{
				{0, 0.1, 0.1, 0.1, 0.1},
				{0, -0.4, -0.4, -0.4, -0.4},
			},
			SampleRate: sampleRate,
		}
	}
	img := codec.Encode(samples, AudioMetadata{SampleRate: sampleRate, NumChannels: 2}, nil)
	if img.Height != 10 {
		t.Fatalf("image height %d, want 10", img.Height)
	}

	result := codec.Decode(img, DecodeOptions{SampleRate: sampleRate})
	if result.Channels != 2 {
		t.Fatalf("decoded %d channels, want 2", result.Channels)
	}

	for frame, sample := range result.Samples {
		if len(sample.Magnitudes) != 2 {
			t.Fatalf("frame %d has %d channels", frame, len(sample.Magnitudes))
		}
		if sample.Magnitudes[0][1] < sample.Magnitudes[0][4] {
			t.Errorf("frame %d channel 0 spectrum transposed", frame)
		}
		if sample.Magnitudes[1][4] < sample.Magnitudes[1][1] {
			t.Errorf("frame %d channel 1 spectrum transposed", frame)
		}
	}
}

func TestDecodeProgressReachesCompletion(t *testing.T) {
	codec := NewCodec(DefaultConfig())
	img := steadyImage(codec, 8, []float64{0, 0.5, 1.0, 0.8, 0.3}, []float64{0, 0.3, 0.3, 0.3, 0.3}, 1000)

	var fractions []float64
	previews := 0
	codec.Decode(img, DecodeOptions{
		SampleRate: 1000,
		OnProgress: func(fraction float64) { fractions = append(fractions, fraction) },
		OnPreview:  func(samples []AudioColourSample, ready int) { previews++ },
	})

	if len(fractions) == 0 || fractions[len(fractions)-1] != 1.0 {
		t.Fatalf("progress never reached 1.0: %v", fractions)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Errorf("progress went backwards: %v", fractions)
			break
		}
	}
	if previews != 8 {
		t.Errorf("got %d previews, want one per frame for a short decode", previews)
	}
}
