// Package resynth converts between time-domain audio and the per-frame
// magnitude/phase arrays the codec works on: a forward Hann-windowed
// STFT for encoding and a window-sum-normalised overlap-add inverse for
// decoding.
package resynth

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/r9y9/gossp/stft"

	"github.com/synesthesia-audio/resyne/spectral"
)

const windowSumFloor = 1e-8

// Analysis is the STFT of a multi-channel signal, indexed
// [channel][frame][bin].
type Analysis struct {
	Magnitudes [][][]float64
	Phases     [][][]float64
	SampleRate float64
	FFTSize    int
	HopSize    int
	NumSamples int
}

// BinCount returns bins per frame.
func (a *Analysis) BinCount() int {
	return a.FFTSize/2 + 1
}

// Samples converts the analysis into the frame-major sequence the image
// codec encodes. Frequencies are left nil; the encoder derives nominal
// bin-centre frequencies from the sample rate.
func (a *Analysis) Samples() []spectral.AudioColourSample {
	if len(a.Magnitudes) == 0 {
		return nil
	}
	numFrames := len(a.Magnitudes[0])
	channels := len(a.Magnitudes)

	samples := make([]spectral.AudioColourSample, 0, numFrames)
	for frame := 0; frame < numFrames; frame++ {
		sample := spectral.AudioColourSample{
			Magnitudes: make([][]float64, channels),
			Phases:     make([][]float64, channels),
			Timestamp:  float64(frame) * float64(a.HopSize) / a.SampleRate,
			SampleRate: a.SampleRate,
		}
		for ch := 0; ch < channels; ch++ {
			if frame < len(a.Magnitudes[ch]) {
				sample.Magnitudes[ch] = a.Magnitudes[ch][frame]
			}
			if frame < len(a.Phases[ch]) {
				sample.Phases[ch] = a.Phases[ch][frame]
			}
		}
		samples = append(samples, sample)
	}
	return samples
}

// Analyze runs a Hann-windowed forward STFT over every channel. All
// channels must be the same length; magnitudes are scaled by 2/fftSize
// so a full-scale sinusoid lands near unity.
func Analyze(audio [][]float64, sampleRate float64, fftSize, hopSize int) (*Analysis, error) {
	if len(audio) == 0 || len(audio[0]) == 0 {
		return nil, fmt.Errorf("analyze: no audio")
	}
	if fftSize < 4 || fftSize%2 != 0 {
		return nil, fmt.Errorf("analyze: bad fft size %d", fftSize)
	}
	if hopSize <= 0 || hopSize > fftSize {
		return nil, fmt.Errorf("analyze: bad hop size %d", hopSize)
	}
	numSamples := len(audio[0])
	for ch, channel := range audio {
		if len(channel) != numSamples {
			return nil, fmt.Errorf("analyze: channel %d length %d, want %d", ch, len(channel), numSamples)
		}
	}

	s := stft.New(hopSize, fftSize)
	binCount := fftSize/2 + 1
	scale := 2.0 / float64(fftSize)

	result := &Analysis{
		Magnitudes: make([][][]float64, len(audio)),
		Phases:     make([][][]float64, len(audio)),
		SampleRate: sampleRate,
		FFTSize:    fftSize,
		HopSize:    hopSize,
		NumSamples: numSamples,
	}

	for ch, channel := range audio {
		spectrum := s.STFT(channel)
		result.Magnitudes[ch] = make([][]float64, len(spectrum))
		result.Phases[ch] = make([][]float64, len(spectrum))
		for frame, bins := range spectrum {
			mags := make([]float64, binCount)
			phases := make([]float64, binCount)
			for bin := 0; bin < binCount && bin < len(bins); bin++ {
				mags[bin] = cmplx.Abs(bins[bin]) * scale
				phases[bin] = cmplx.Phase(bins[bin])
			}
			result.Magnitudes[ch][frame] = mags
			result.Phases[ch][frame] = phases
		}
	}

	return result, nil
}

// Reconstruct rebuilds multi-channel time-domain audio from a decoded
// sample sequence with inverse-FFT overlap-add, dividing out the
// squared-window sum. The samples must share a channel and bin layout;
// fftSize is derived from the first frame's bin count.
func Reconstruct(samples []spectral.AudioColourSample, hopSize int) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("reconstruct: no frames")
	}
	if len(samples[0].Magnitudes) == 0 {
		return nil, fmt.Errorf("reconstruct: no channels")
	}
	channels := len(samples[0].Magnitudes)
	binCount := len(samples[0].Magnitudes[0])
	if binCount < 2 {
		return nil, fmt.Errorf("reconstruct: bin count %d too small", binCount)
	}
	fftSize := spectral.FFTSizeForBins(binCount)
	if hopSize <= 0 {
		hopSize = fftSize / 2
	}

	s := stft.New(hopSize, fftSize)
	numFrames := len(samples)
	outLen := fftSize + (numFrames-1)*hopSize
	scale := float64(fftSize) / 2.0

	audio := make([][]float64, channels)
	for ch := 0; ch < channels; ch++ {
		signal := make([]float64, outLen)
		windowSum := make([]float64, outLen)
		full := make([]complex128, fftSize)

		for frame := 0; frame < numFrames; frame++ {
			sample := samples[frame]
			if len(sample.Magnitudes) <= ch || len(sample.Phases) <= ch {
				return nil, fmt.Errorf("reconstruct: frame %d missing channel %d", frame, ch)
			}
			mags := sample.Magnitudes[ch]
			phases := sample.Phases[ch]
			if len(mags) != binCount || len(phases) != binCount {
				return nil, fmt.Errorf("reconstruct: frame %d channel %d bin count %d, want %d",
					frame, ch, len(mags), binCount)
			}

			for i := range full {
				full[i] = 0
			}
			for bin := 0; bin < binCount; bin++ {
				value := cmplx.Rect(mags[bin]*scale, phases[bin])
				full[bin] = value
				if bin > 0 && bin < fftSize/2 {
					full[fftSize-bin] = cmplx.Conj(value)
				}
			}

			buf := fft.IFFT(full)
			base := frame * hopSize
			for j := 0; j < fftSize; j++ {
				pos := base + j
				if pos >= outLen {
					break
				}
				signal[pos] += real(buf[j]) * s.Window[j]
				windowSum[pos] += s.Window[j] * s.Window[j]
			}
		}

		for i := range signal {
			if windowSum[i] > windowSumFloor {
				signal[i] /= windowSum[i]
			}
		}
		audio[ch] = signal
	}

	return audio, nil
}

// PeakNormalise scales every channel by a common factor so the loudest
// sample sits at the target level. Silent audio is untouched.
func PeakNormalise(audio [][]float64, target float64) {
	peak := 0.0
	for _, channel := range audio {
		for _, v := range channel {
			if abs := math.Abs(v); abs > peak {
				peak = abs
			}
		}
	}
	if peak <= 0 || target <= 0 {
		return
	}
	gain := target / peak
	for _, channel := range audio {
		for i := range channel {
			channel[i] *= gain
		}
	}
}
