// Package varispeed detects regions of a decoded spectrogram whose
// frequency content disagrees with the nominal bin frequencies by a
// constant ratio, the signature of audio that was resampled or
// time-stretched before re-encoding, and corrects them by resampling the
// time-domain audio back.
package varispeed

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/synesthesia-audio/resyne/logging"
)

const (
	// DefaultMinShift is the relative pitch deviation below which a frame
	// is considered unshifted.
	DefaultMinShift = 0.02

	// DefaultCrossfade is the splice length in samples used when a
	// corrected region is joined back against untouched audio.
	DefaultCrossfade = 256

	minRegionFrames   = 4
	ratioTolerance    = 0.05
	minPlausibleRatio = 0.1
	maxPlausibleRatio = 10.0
)

// Region is a contiguous frame range detected at a stable pitch ratio.
// EndFrame is inclusive.
type Region struct {
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	PitchRatio float64 `json:"pitch_ratio"`
}

// FrameRatio estimates the pitch ratio of one frame as the mean of
// decoded frequency over nominal bin-centre frequency, restricted to
// bins whose ratio is physically plausible. Frames with no usable bins
// report ratio 1.
func FrameRatio(frequencies []float64, sampleRate float64, fftSize int) float64 {
	if len(frequencies) < 2 || sampleRate <= 0 || fftSize <= 0 {
		return 1.0
	}
	freqResolution := sampleRate / float64(fftSize)

	ratios := make([]float64, 0, len(frequencies))
	for bin := 1; bin < len(frequencies); bin++ {
		expected := freqResolution * float64(bin)
		decoded := frequencies[bin]
		if expected <= 0 || decoded <= 0 ||
			math.IsNaN(decoded) || math.IsInf(decoded, 0) {
			continue
		}
		ratio := decoded / expected
		if ratio > minPlausibleRatio && ratio < maxPlausibleRatio {
			ratios = append(ratios, ratio)
		}
	}
	if len(ratios) == 0 {
		return 1.0
	}
	return stat.Mean(ratios, nil)
}

// DetectRegions scans per-frame pitch ratios for contiguous runs that
// deviate from 1 by more than minShift, hold a locally stable ratio and
// are at least four frames long. minShift at or below 0 uses
// DefaultMinShift.
func DetectRegions(allFrequencies [][]float64, sampleRate float64, fftSize int, minShift float64) []Region {
	if minShift <= 0 {
		minShift = DefaultMinShift
	}
	numFrames := len(allFrequencies)
	if numFrames == 0 {
		return nil
	}

	frameRatios := make([]float64, numFrames)
	for frame := 0; frame < numFrames; frame++ {
		frameRatios[frame] = FrameRatio(allFrequencies[frame], sampleRate, fftSize)
	}

	var regions []Region
	runStart := -1
	runSum := 0.0

	flush := func(end int) {
		if runStart < 0 {
			return
		}
		length := end - runStart + 1
		if length >= minRegionFrames {
			regions = append(regions, Region{
				StartFrame: runStart,
				EndFrame:   end,
				PitchRatio: runSum / float64(length),
			})
		}
		runStart = -1
		runSum = 0
	}

	for frame := 0; frame < numFrames; frame++ {
		ratio := frameRatios[frame]
		shifted := math.Abs(ratio-1.0) > minShift

		if !shifted {
			flush(frame - 1)
			continue
		}

		if runStart >= 0 {
			runMean := runSum / float64(frame-runStart)
			if math.Abs(ratio-runMean) > ratioTolerance {
				flush(frame - 1)
			}
		}
		if runStart < 0 {
			runStart = frame
		}
		runSum += ratio
	}
	flush(numFrames - 1)

	if len(regions) > 0 {
		logging.GetGlobalLogger().WithFields(logging.Fields{
			"regions": len(regions),
		}).Info("varispeed regions detected")
	}
	return regions
}

// ResampleAudio reads input at the given step ratio with linear
// interpolation; output length is ceil(n/ratio).
func ResampleAudio(input []float64, ratio float64) []float64 {
	if len(input) == 0 || ratio <= 0 ||
		math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil
	}
	if math.Abs(ratio-1.0) < 1e-9 {
		out := make([]float64, len(input))
		copy(out, input)
		return out
	}

	outLen := int(math.Ceil(float64(len(input)) / ratio))
	out := make([]float64, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx >= len(input)-1 {
			out[i] = input[len(input)-1]
			continue
		}
		frac := srcPos - float64(srcIdx)
		out[i] = input[srcIdx]*(1.0-frac) + input[srcIdx+1]*frac
	}
	return out
}

// ApplyRegions rebuilds the audio with every detected region resampled
// back to its original speed, splicing corrected spans against the
// untouched audio with raised-cosine crossfades. Regions must be sorted
// and non-overlapping, as DetectRegions returns them. crossfade at or
// below 0 uses DefaultCrossfade.
func ApplyRegions(audio []float64, regions []Region, hopSize, crossfade int) []float64 {
	if len(regions) == 0 || hopSize <= 0 {
		out := make([]float64, len(audio))
		copy(out, audio)
		return out
	}
	if crossfade <= 0 {
		crossfade = DefaultCrossfade
	}

	out := make([]float64, 0, len(audio))
	cursor := 0
	for _, region := range regions {
		start := region.StartFrame * hopSize
		end := (region.EndFrame + 1) * hopSize
		if start < cursor {
			start = cursor
		}
		if end > len(audio) {
			end = len(audio)
		}
		if start >= end || region.PitchRatio <= 0 {
			continue
		}

		out = appendCrossfaded(out, audio[cursor:start], crossfade)
		corrected := ResampleAudio(audio[start:end], region.PitchRatio)
		out = appendCrossfaded(out, corrected, crossfade)
		cursor = end
	}
	out = appendCrossfaded(out, audio[cursor:], crossfade)
	return out
}

// appendCrossfaded appends segment to dst, overlapping up to crossfade
// samples with a raised-cosine blend so splices carry no hard edge.
func appendCrossfaded(dst, segment []float64, crossfade int) []float64 {
	if len(segment) == 0 {
		return dst
	}
	overlap := crossfade
	if overlap > len(dst) {
		overlap = len(dst)
	}
	if overlap > len(segment) {
		overlap = len(segment)
	}
	if overlap == 0 {
		return append(dst, segment...)
	}

	base := len(dst) - overlap
	for i := 0; i < overlap; i++ {
		weight := 0.5 * (1.0 - math.Cos(math.Pi*float64(i+1)/float64(overlap+1)))
		dst[base+i] = dst[base+i]*(1.0-weight) + segment[i]*weight
	}
	return append(dst, segment[overlap:]...)
}
