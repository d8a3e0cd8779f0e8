package spectral

import "math"

// RGBAColour is one spectrogram pixel. R carries encoded magnitude,
// G encoded log-frequency, B/A the encoded phase unit vector. All four
// values live in [0, 1].
type RGBAColour struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// AudioMetadata describes the analysis parameters an image was encoded
// with. It rides alongside the pixel buffer in the container format and
// may be absent or wrong after a round trip through an external editor;
// the decoder treats it as a hint only.
type AudioMetadata struct {
	SampleRate  float64 `json:"sample_rate"`
	FFTSize     int     `json:"fft_size"`
	HopSize     int     `json:"hop_size"`
	NumChannels int     `json:"num_channels"`
	NumFrames   int     `json:"num_frames"`
	NumBins     int     `json:"num_bins"`
	WindowType  string  `json:"window_type"`
	Version     string  `json:"version"`
}

// SchemaVersion identifies the current pixel layout.
const SchemaVersion = "3.0.0"

// ColourNativeImage is the raster representation of an STFT sequence.
// Width is time frames; height is bins times channels with channel 0 in
// the top rows. Pixels are row-major.
type ColourNativeImage struct {
	Width    int
	Height   int
	Pixels   []RGBAColour
	Metadata AudioMetadata
}

// NewColourNativeImage allocates a zeroed image of the given dimensions.
func NewColourNativeImage(width, height int) *ColourNativeImage {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &ColourNativeImage{
		Width:  width,
		Height: height,
		Pixels: make([]RGBAColour, width*height),
	}
}

// At returns the pixel at (x, y). Out-of-range coordinates return a zero
// pixel rather than panicking; malformed callers degrade to silence.
func (img *ColourNativeImage) At(x, y int) RGBAColour {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return RGBAColour{}
	}
	return img.Pixels[y*img.Width+x]
}

// Set writes the pixel at (x, y); out-of-range writes are dropped.
func (img *ColourNativeImage) Set(x, y int, c RGBAColour) {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return
	}
	img.Pixels[y*img.Width+x] = c
}

// commonFFTSizes are the analysis sizes the structural layout inference
// recognises, largest first so the tallest plausible bin count wins.
var commonFFTSizes = []int{16384, 8192, 4096, 2048, 1024, 512, 256}

// InferLayout recovers (binCount, channels) from an image height alone.
// A height that is an exact multiple of bins-per-channel for a common FFT
// size is read as stacked channels; anything else is a single channel.
func InferLayout(height int) (binCount, channels int) {
	if height <= 0 {
		return 0, 0
	}
	for _, fftSize := range commonFFTSizes {
		bins := fftSize/2 + 1
		if height%bins == 0 {
			ch := height / bins
			if ch >= 1 && ch <= 8 {
				return bins, ch
			}
		}
	}
	return height, 1
}

// BinCount returns bins per channel, preferring trusted metadata and
// falling back to structural inference.
func (img *ColourNativeImage) BinCount() int {
	if img.Metadata.NumChannels > 0 && img.Height%img.Metadata.NumChannels == 0 {
		return img.Height / img.Metadata.NumChannels
	}
	bins, _ := InferLayout(img.Height)
	return bins
}

// Channels returns the channel count implied by the metadata or the
// structural layout.
func (img *ColourNativeImage) Channels() int {
	if img.Metadata.NumChannels > 0 && img.Height%img.Metadata.NumChannels == 0 {
		return img.Metadata.NumChannels
	}
	_, ch := InferLayout(img.Height)
	return ch
}

// Dims reports the image dimensions.
func (img *ColourNativeImage) Dims() (width, height int) {
	return img.Width, img.Height
}

// ChannelAt returns one colour channel of the pixel at (x, y), indexed
// 0..3 for R, G, B, A. Out-of-range reads return 0.
func (img *ColourNativeImage) ChannelAt(x, y, channel int) float64 {
	pixel := img.At(x, y)
	switch channel {
	case 0:
		return pixel.R
	case 1:
		return pixel.G
	case 2:
		return pixel.B
	case 3:
		return pixel.A
	default:
		return 0
	}
}

// AudioColourSample is one decoded STFT frame: per-channel magnitude,
// phase and frequency arrays plus timing information. Loudness and SPL
// are optional annotations filled in by the capture side.
type AudioColourSample struct {
	Magnitudes   [][]float64 `json:"magnitudes"`
	Phases       [][]float64 `json:"phases"`
	Frequencies  [][]float64 `json:"frequencies"`
	Timestamp    float64     `json:"timestamp"`
	SampleRate   float64     `json:"sample_rate"`
	LoudnessLUFS float64     `json:"loudness_lufs,omitempty"`
	SPL          float64     `json:"spl,omitempty"`
}

// FFTSizeForBins returns the analysis size implied by a bin count.
func FFTSizeForBins(binCount int) int {
	if binCount > 1 {
		return (binCount - 1) * 2
	}
	return 2
}

func sanitise(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
