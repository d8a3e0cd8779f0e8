package spectral

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"github.com/synesthesia-audio/resyne/logging"
	"github.com/synesthesia-audio/resyne/reconstruction"
)

const (
	// Phase deviation gate for damaged-region bins. Beyond it the raw
	// decoded phase is distrusted entirely and the vocoder prediction wins.
	moderatePhaseDeviation = 0.6

	// Fraction of the raw-phase correction suppressed at full damage weight.
	damageDampingStrength = 0.95

	// Bins below this damage weight take the standard vocoder update.
	damagedWeightFloor = 0.01

	// Margin over the intensity floor a local maximum must clear before it
	// can anchor phase locking.
	peakMagnitudeMargin = 5.0

	// Frames of continuous silence after which a bin's carry state resets.
	silenceRunLimit = 64

	transientFluxSigma = 1.5

	decodeProgressStride = 100
	previewDivisions     = 200
)

// DecodeOptions controls a full-image decode. Zero values mean "infer":
// sample rate from the pixels, hop from the FFT size, channels from the
// image layout.
type DecodeOptions struct {
	SampleRate float64
	HopSize    int
	Channels   int

	// OnProgress receives a fraction in [0, 1] at bounded intervals. It
	// may be called from the decoding goroutines concurrently with
	// OnPreview but never after Decode returns.
	OnProgress func(fraction float64)

	// OnPreview receives the frame-major samples assembled so far, for
	// low-latency rendering before the decode completes. The slice is a
	// prefix of the final result and must not be mutated.
	OnPreview func(samples []AudioColourSample, framesReady int)
}

// DecodeResult is the decoded sample sequence plus the layout the decoder
// settled on.
type DecodeResult struct {
	Samples    []AudioColourSample
	SampleRate float64
	FFTSize    int
	HopSize    int
	BinCount   int
	Channels   int
}

// binPhaseState is the per-bin carry state of the phase state machine.
// Raw decoded phase history and output phase history are tracked
// separately: drift correction measures against what was decoded, not
// against what was emitted.
type binPhaseState struct {
	prevDecodedPhase float64
	prevOutputPhase  float64
	initialised      bool
	silenceRun       int
}

// Decode reconstructs the full sample sequence from a spectrogram image.
// Pixel decoding is partitioned over a bounded worker pool; phase
// reconstruction then runs one goroutine per channel, since the carry
// state forces strict time order within a channel. An empty image decodes
// to an empty result with the progress callback driven to 1.
func (c *Codec) Decode(img *ColourNativeImage, opts DecodeOptions) DecodeResult {
	progress := func(fraction float64) {
		if opts.OnProgress != nil {
			opts.OnProgress(fraction)
		}
	}

	if img == nil || img.Width <= 0 || img.Height <= 0 {
		progress(1.0)
		return DecodeResult{SampleRate: c.cfg.DefaultSampleRate}
	}

	binCount := img.BinCount()
	if binCount > c.cfg.MaxBinCount {
		binCount = c.cfg.MaxBinCount
	}
	channels := img.Channels()
	if opts.Channels > 0 && opts.Channels*binCount <= img.Height {
		channels = opts.Channels
	}
	if binCount <= 0 || channels <= 0 {
		progress(1.0)
		return DecodeResult{SampleRate: c.cfg.DefaultSampleRate}
	}

	sampleRate := opts.SampleRate
	if sampleRate > 0 {
		sampleRate = c.clampRate(sampleRate)
	} else {
		sampleRate = c.DetectSampleRate(img)
	}

	fftSize := FFTSizeForBins(binCount)
	hopSize := opts.HopSize
	if hopSize <= 0 {
		hopSize = fftSize / 2
	}
	if hopSize <= 0 {
		hopSize = 1
	}

	numFrames := img.Width
	c.logger.WithFields(logging.Fields{
		"frames":      numFrames,
		"bins":        binCount,
		"channels":    channels,
		"sample_rate": sampleRate,
		"hop_size":    hopSize,
	}).Info("decoding spectrogram image")

	// Phase one: pixel decode, frame-partitioned, no shared mutable state
	// beyond disjoint pre-sized slots.
	allMags := make([][][]float64, channels)
	allPhases := make([][][]float64, channels)
	allFreqs := make([][][]float64, channels)
	for ch := 0; ch < channels; ch++ {
		allMags[ch] = make([][]float64, numFrames)
		allPhases[ch] = make([][]float64, numFrames)
		allFreqs[ch] = make([][]float64, numFrames)
	}

	workers := runtime.NumCPU()
	if c.cfg.WorkerCap > 0 && workers > c.cfg.WorkerCap {
		workers = c.cfg.WorkerCap
	}
	if workers < 1 {
		workers = 1
	}

	var framesDecoded int64
	var progressMu sync.Mutex
	frameJobs := make(chan int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			column := make([]RGBAColour, binCount)
			for frame := range frameJobs {
				for ch := 0; ch < channels; ch++ {
					offset := ch * binCount
					for bin := 0; bin < binCount; bin++ {
						column[bin] = img.At(frame, offset+bin)
					}
					mags, phases, freqs := c.DecodeTimeFrame(column, sampleRate)
					allMags[ch][frame] = mags
					allPhases[ch][frame] = phases
					allFreqs[ch][frame] = freqs
				}

				done := atomic.AddInt64(&framesDecoded, 1)
				if done%decodeProgressStride == 0 {
					progressMu.Lock()
					progress(0.5 * float64(done) / float64(numFrames))
					progressMu.Unlock()
				}
			}
		}()
	}
	for frame := 0; frame < numFrames; frame++ {
		frameJobs <- frame
	}
	close(frameJobs)
	wg.Wait()
	progress(0.5)

	// Phase two: the per-channel phase state machines. Each channel owns
	// its state exclusively; the assembler drains one completion token per
	// channel per frame, so it only reads rows all machines have finished.
	outPhases := make([][][]float64, channels)
	frameDone := make([]chan int, channels)
	for ch := 0; ch < channels; ch++ {
		outPhases[ch] = make([][]float64, numFrames)
		frameDone[ch] = make(chan int, numFrames)
	}

	for ch := 0; ch < channels; ch++ {
		go c.processChannelPhases(
			allMags[ch], allPhases[ch], allFreqs[ch],
			outPhases[ch], sampleRate, hopSize, frameDone[ch])
	}

	samples := make([]AudioColourSample, 0, numFrames)
	previewStride := numFrames / previewDivisions
	if previewStride < 1 {
		previewStride = 1
	}

	for frame := 0; frame < numFrames; frame++ {
		for ch := 0; ch < channels; ch++ {
			<-frameDone[ch]
		}

		sample := AudioColourSample{
			Magnitudes:  make([][]float64, channels),
			Phases:      make([][]float64, channels),
			Frequencies: make([][]float64, channels),
			Timestamp:   float64(frame) * float64(hopSize) / sampleRate,
			SampleRate:  sampleRate,
		}
		for ch := 0; ch < channels; ch++ {
			sample.Magnitudes[ch] = allMags[ch][frame]
			sample.Phases[ch] = outPhases[ch][frame]
			sample.Frequencies[ch] = allFreqs[ch][frame]
		}
		samples = append(samples, sample)

		progressMu.Lock()
		progress(0.5 + 0.5*float64(frame+1)/float64(numFrames))
		progressMu.Unlock()
		if opts.OnPreview != nil && (frame+1)%previewStride == 0 {
			opts.OnPreview(samples, frame+1)
		}
	}

	progress(1.0)
	c.logger.WithFields(logging.Fields{
		"frames": len(samples),
	}).Debug("decode complete")

	return DecodeResult{
		Samples:    samples,
		SampleRate: sampleRate,
		FFTSize:    fftSize,
		HopSize:    hopSize,
		BinCount:   binCount,
		Channels:   channels,
	}
}

// processChannelPhases runs the sequential phase state machine for one
// channel, writing final phases frame by frame and signalling each
// completed frame index on done. Frames must advance strictly in time
// order; the carry state is the whole point.
func (c *Codec) processChannelPhases(
	channelMags, channelPhases, channelFreqs [][]float64,
	out [][]float64, sampleRate float64, hopSize int, done chan<- int) {

	numFrames := len(channelMags)
	if numFrames == 0 {
		close(done)
		return
	}
	binCount := len(channelMags[0])

	// Transient threshold from the spectral-flux distribution of the whole
	// channel.
	fluxes := make([]float64, numFrames)
	for frame := 1; frame < numFrames; frame++ {
		fluxes[frame] = reconstruction.ComputeSpectralFlux(channelMags[frame], channelMags[frame-1])
	}
	fluxThreshold := math.Inf(1)
	if numFrames > 2 {
		mean := stat.Mean(fluxes, nil)
		stddev := stat.StdDev(fluxes, nil)
		if !math.IsNaN(stddev) {
			fluxThreshold = mean + transientFluxSigma*stddev
		}
	}

	states := make([]binPhaseState, binCount)
	prevOutput := make([]float64, binCount)
	freqResolution := sampleRate / float64(FFTSizeForBins(binCount))

	for frame := 0; frame < numFrames; frame++ {
		mags := channelMags[frame]
		rawPhases := channelPhases[frame]
		freqs := channelFreqs[frame]
		isTransient := frame > 0 && fluxes[frame] > fluxThreshold

		damagedBins := reconstruction.DetectDamagedBins(channelMags, frame)
		weights := reconstruction.ComputeDamageBlend(damagedBins, c.cfg.DamageBlendRadius)
		anyDamage := false
		for _, damaged := range damagedBins {
			if damaged {
				anyDamage = true
				break
			}
		}

		var reconPhases []float64
		if anyDamage {
			reconPhases = make([]float64, binCount)
			reconstruction.ReconstructPhasePGHI(
				channelMags, channelFreqs, frame, reconPhases,
				sampleRate, hopSize, prevOutput)
			peaks := reconstruction.FindSpectralPeaks(mags, peakMagnitudeMargin*c.cfg.IntensityFloor)
			reconstruction.ApplyPhaseLocking(reconPhases, mags, peaks, weights)
			reconstruction.SmoothPhase(reconPhases, mags, c.cfg.SmoothingIterations)
			reconstruction.AlignReconstructedPhase(
				reconPhases, prevOutput, freqs, weights, sampleRate, hopSize)
		}

		outPhases := make([]float64, binCount)
		for bin := 0; bin < binCount; bin++ {
			state := &states[bin]
			active := bin < len(mags) && mags[bin] > c.cfg.IntensityFloor

			frequency := freqResolution * float64(bin)
			if bin < len(freqs) && freqs[bin] > 0 {
				frequency = freqs[bin]
			}
			advance := twoPi * frequency * float64(hopSize) / sampleRate

			var output float64
			switch {
			case !active:
				output = reconstruction.WrapToPi(state.prevOutputPhase + advance)
				state.silenceRun++
				if state.silenceRun > silenceRunLimit {
					*state = binPhaseState{}
					output = 0
				}

			case !state.initialised:
				output = rawPhases[bin]
				state.initialised = true
				state.silenceRun = 0

			default:
				state.silenceRun = 0
				weight := 0.0
				if bin < len(weights) {
					weight = weights[bin]
				}

				if weight < damagedWeightFloor {
					// Standard vocoder update: carry the raw-phase error
					// observed against the raw history into the output
					// trajectory.
					rawError := reconstruction.WrapToPi(
						rawPhases[bin] - state.prevDecodedPhase - advance)
					output = reconstruction.WrapToPi(
						state.prevOutputPhase + advance + rawError)
				} else if isTransient {
					output = rawPhases[bin]
				} else {
					expected := reconstruction.WrapToPi(state.prevOutputPhase + advance)
					deviation := reconstruction.WrapToPi(rawPhases[bin] - expected)
					if math.Abs(deviation) > moderatePhaseDeviation {
						output = expected
					} else {
						damping := 1.0 - damageDampingStrength*(1.0-weight)
						output = reconstruction.WrapToPi(
							expected + deviation*(1.0-damping))
					}
				}
			}

			if anyDamage && active && bin < len(reconPhases) && bin < len(weights) {
				weight := weights[bin]
				if weight > 0 {
					blended := reconstruction.WrapToPi(
						output + reconstruction.WrapToPi(reconPhases[bin]-output)*weight)
					smoothing := 0.4 + 0.6*weight
					delta := reconstruction.WrapToPi(blended - state.prevOutputPhase)
					output = reconstruction.WrapToPi(
						state.prevOutputPhase + delta*smoothing)
				}
			}

			if active {
				state.prevDecodedPhase = rawPhases[bin]
			}
			state.prevOutputPhase = output
			outPhases[bin] = output
		}

		copy(prevOutput, outPhases)
		out[frame] = outPhases
		done <- frame
	}
	close(done)
}
