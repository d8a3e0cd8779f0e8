package spectral

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/synesthesia-audio/resyne/logging"
)

// DetectSampleRate recovers the sample rate from pixel data alone. Every
// active bin with a valid encoded frequency votes with the rate it
// implies (frequency * fftSize / bin); the votes are bucketed against the
// common audio rates and the tightest sufficiently-populated bucket wins.
// The function is deterministic and always returns a usable, clamped
// rate; an image with no usable votes falls back to the default rate.
func (c *Codec) DetectSampleRate(img *ColourNativeImage) float64 {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return c.cfg.DefaultSampleRate
	}

	binCount := img.BinCount()
	if binCount > c.cfg.MaxBinCount {
		binCount = c.cfg.MaxBinCount
	}
	if binCount <= 1 {
		return c.cfg.DefaultSampleRate
	}

	fftSizeF := float64(FFTSizeForBins(binCount))
	channels := img.Channels()

	var candidates []float64
	processFrame := func(frame int) {
		for y := 0; y < binCount*channels && y < img.Height; y++ {
			bin := y % binCount
			if bin == 0 {
				continue
			}

			pixel := img.At(frame, y)
			magnitude := c.DenormaliseMagnitude(pixel.R)
			if math.IsNaN(magnitude) || magnitude <= c.cfg.IntensityFloor {
				continue
			}

			frequency := c.DenormaliseLogFrequency(pixel.G)
			if math.IsNaN(frequency) || math.IsInf(frequency, 0) || frequency <= 0 {
				continue
			}

			candidate := frequency * fftSizeF / float64(bin)
			if math.IsNaN(candidate) || math.IsInf(candidate, 0) ||
				candidate < c.cfg.MinSampleRate || candidate > c.cfg.MaxSampleRate {
				continue
			}
			candidates = append(candidates, candidate)
		}
	}

	frameStep := img.Width / 512
	if frameStep < 1 {
		frameStep = 1
	}
	for frame := 0; frame < img.Width; frame += frameStep {
		processFrame(frame)
	}
	if last := img.Width - 1; last%frameStep != 0 {
		processFrame(last)
	}

	if len(candidates) == 0 {
		return c.cfg.DefaultSampleRate
	}

	if rate, ok := c.bestRateBucket(candidates); ok {
		return c.clampRate(rate)
	}

	median := robustMedian(candidates)
	if math.IsNaN(median) || median <= 0 {
		return c.cfg.DefaultSampleRate
	}
	return c.clampRate(c.SnapToCommonRate(median))
}

// bestRateBucket groups candidates around each common rate and returns
// the rate whose bucket meets the vote threshold with the lowest spread.
func (c *Codec) bestRateBucket(candidates []float64) (float64, bool) {
	bestRate := 0.0
	bestStdDev := math.Inf(1)
	found := false

	for _, nominal := range c.cfg.CommonSampleRates {
		tolerance := math.Max(1.0, nominal*c.cfg.SampleRateTolerance)
		var bucket []float64
		for _, candidate := range candidates {
			if math.Abs(candidate-nominal) <= tolerance {
				bucket = append(bucket, candidate)
			}
		}
		if len(bucket) < c.cfg.MinRateVotes {
			continue
		}

		stdDev := 0.0
		if len(bucket) > 1 {
			stdDev = stat.StdDev(bucket, nil)
		}
		if !found || stdDev < bestStdDev {
			bestRate = nominal
			bestStdDev = stdDev
			found = true
		}
	}

	if found {
		c.logger.Debug("sample rate inferred from pixel votes", logging.Fields{
			"rate":    bestRate,
			"std_dev": bestStdDev,
		})
	}
	return bestRate, found
}

// SnapToCommonRate snaps a rate to the nearest common audio rate when it
// lies within the relative tolerance, else returns it unchanged.
func (c *Codec) SnapToCommonRate(sampleRate float64) float64 {
	if math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) || sampleRate <= 0 {
		return sampleRate
	}
	for _, nominal := range c.cfg.CommonSampleRates {
		tolerance := math.Max(1.0, nominal*c.cfg.SampleRateTolerance)
		if math.Abs(sampleRate-nominal) <= tolerance {
			return nominal
		}
	}
	return sampleRate
}

func (c *Codec) clampRate(rate float64) float64 {
	if rate < c.cfg.MinSampleRate {
		return c.cfg.MinSampleRate
	}
	if rate > c.cfg.MaxSampleRate {
		return c.cfg.MaxSampleRate
	}
	return rate
}

func robustMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return 0.5 * (sorted[mid-1] + sorted[mid])
	}
	return sorted[mid]
}
