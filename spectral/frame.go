package spectral

import "math"

// EncodeTimeFrame encodes one STFT frame into a pixel column. Bin count
// follows the shorter of the two arrays; frequencies are the nominal
// bin-centre frequencies capped at Nyquist.
func (c *Codec) EncodeTimeFrame(magnitudes, phases []float64, sampleRate float64) []RGBAColour {
	numBins := len(magnitudes)
	if len(phases) < numBins {
		numBins = len(phases)
	}

	column := make([]RGBAColour, numBins)
	for i := range column {
		column[i] = RGBAColour{R: 0, G: 0, B: unitOffset, A: unitOffset}
	}
	if numBins == 0 {
		return column
	}

	freqResolution := 0.0
	if sampleRate > 0 {
		freqResolution = sampleRate / float64(FFTSizeForBins(numBins))
	}

	for bin := 0; bin < numBins; bin++ {
		frequency := c.cfg.MinFrequency
		if freqResolution > 0 {
			frequency = math.Min(freqResolution*float64(bin), sampleRate*0.5)
		}
		column[bin] = c.EncodeFrequencyBin(frequency, sanitise(magnitudes[bin]), phases[bin])
	}

	return column
}

// DecodeTimeFrame decodes one pixel column into magnitude, phase and
// frequency arrays. Bins at or below the intensity floor decode to
// silence: magnitude 0, phase 0 and the nominal bin-centre frequency.
// Bin 0 is always reported at frequency 0 regardless of its pixel.
func (c *Codec) DecodeTimeFrame(column []RGBAColour, sampleRate float64) (magnitudes, phases, frequencies []float64) {
	numBins := len(column)
	magnitudes = make([]float64, numBins)
	phases = make([]float64, numBins)
	frequencies = make([]float64, numBins)
	if numBins == 0 {
		return
	}

	freqResolution := 0.0
	if sampleRate > 0 {
		freqResolution = sampleRate / float64(FFTSizeForBins(numBins))
	}

	for bin := 0; bin < numBins; bin++ {
		pixel := column[bin]
		magnitude := c.DenormaliseMagnitude(pixel.R)
		if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) || magnitude <= c.cfg.IntensityFloor {
			frequencies[bin] = freqResolution * float64(bin)
			continue
		}

		magnitudes[bin] = magnitude
		if phase, ok := c.DecodePhaseVector(pixel.B, pixel.A); ok {
			phases[bin] = phase
		}

		frequency := c.DenormaliseLogFrequency(pixel.G)
		if math.IsNaN(frequency) || math.IsInf(frequency, 0) || frequency <= 0 {
			frequency = freqResolution * float64(bin)
		}
		if bin == 0 {
			frequency = 0
		}
		frequencies[bin] = frequency
	}

	return
}
