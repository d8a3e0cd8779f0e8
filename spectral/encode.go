package spectral

import "github.com/synesthesia-audio/resyne/logging"

// Encode rasterises a frame sequence into a spectrogram image. Channels
// are stacked vertically, channel 0 first. The progress callback, when
// set, is invoked at roughly 0.5% intervals and always at completion.
func (c *Codec) Encode(samples []AudioColourSample, metadata AudioMetadata, onProgress func(float64)) *ColourNativeImage {
	numFrames := len(samples)

	numChannels := metadata.NumChannels
	if numChannels <= 0 && numFrames > 0 {
		numChannels = len(samples[0].Magnitudes)
	}
	if numChannels <= 0 {
		numChannels = 1
	}

	numBins := metadata.NumBins
	if numBins <= 0 && numFrames > 0 && len(samples[0].Magnitudes) > 0 {
		numBins = len(samples[0].Magnitudes[0])
	}

	img := NewColourNativeImage(numFrames, numBins*numChannels)
	img.Metadata = metadata
	img.Metadata.NumFrames = numFrames
	img.Metadata.NumBins = numBins
	img.Metadata.NumChannels = numChannels
	if img.Metadata.FFTSize <= 0 && numBins > 0 {
		img.Metadata.FFTSize = FFTSizeForBins(numBins)
	}
	if img.Metadata.Version == "" {
		img.Metadata.Version = SchemaVersion
	}

	if onProgress != nil && numFrames == 0 {
		onProgress(1.0)
		return img
	}
	if onProgress != nil {
		onProgress(0.0)
	}

	progressStride := numFrames / 200
	if progressStride < 1 {
		progressStride = 1
	}

	for frame := 0; frame < numFrames; frame++ {
		sample := samples[frame]
		frameRate := sample.SampleRate
		if frameRate <= 0 {
			frameRate = metadata.SampleRate
		}

		for ch := 0; ch < numChannels; ch++ {
			if ch >= len(sample.Magnitudes) || ch >= len(sample.Phases) {
				continue
			}
			column := c.EncodeTimeFrame(sample.Magnitudes[ch], sample.Phases[ch], frameRate)
			offset := ch * numBins
			for bin := 0; bin < numBins && bin < len(column); bin++ {
				img.Set(frame, offset+bin, column[bin])
			}
		}

		if onProgress != nil && ((frame+1)%progressStride == 0 || frame+1 == numFrames) {
			onProgress(float64(frame+1) / float64(numFrames))
		}
	}

	c.logger.Debug("encoded spectrogram image", logging.Fields{
		"frames":   numFrames,
		"bins":     numBins,
		"channels": numChannels,
	})

	return img
}
