package spectral

import (
	"math"

	"github.com/synesthesia-audio/resyne/logging"
)

// Codec maps STFT bins to and from spectrogram pixels. All mappings are
// total on their clamped domains; bad values (NaN, Inf, negatives) fold
// to safe defaults rather than erroring.
type Codec struct {
	cfg          Config
	dbRange      float64
	logFreqMin   float64
	logFreqRange float64
	logger       logging.Logger
}

const (
	unitScale  = 0.5
	unitOffset = 0.5
	epsilon    = 1e-9
	twoPi      = 2 * math.Pi
)

// NewCodec builds a codec from the given parameters. A zero-value config
// is replaced by DefaultConfig.
func NewCodec(cfg Config) *Codec {
	if cfg.DBMax <= cfg.DBMin {
		cfg = DefaultConfig()
	}
	if cfg.MaxFrequency <= cfg.MinFrequency || cfg.MinFrequency <= 0 {
		cfg.MinFrequency = 20.0
		cfg.MaxFrequency = 20000.0
	}
	logFreqMin := math.Log2(cfg.MinFrequency)
	return &Codec{
		cfg:          cfg,
		dbRange:      cfg.DBMax - cfg.DBMin,
		logFreqMin:   logFreqMin,
		logFreqRange: math.Log2(cfg.MaxFrequency) - logFreqMin,
		logger:       logging.GetGlobalLogger().WithFields(logging.Fields{"component": "spectral"}),
	}
}

// Config returns the parameters the codec was built with.
func (c *Codec) Config() Config {
	return c.cfg
}

// EncodeFrequencyBin packs one bin into a pixel: magnitude in R,
// log-frequency in G, phase unit vector in B/A.
func (c *Codec) EncodeFrequencyBin(frequency, magnitude, phase float64) RGBAColour {
	cosine, sine := c.EncodePhaseVector(phase)
	return RGBAColour{
		R: c.NormaliseMagnitude(magnitude),
		G: c.NormaliseLogFrequency(frequency),
		B: cosine,
		A: sine,
	}
}

// NormaliseMagnitude maps a linear magnitude to [0, 1] through the dB
// window. Zero or invalid magnitudes map to pixel 0.
func (c *Codec) NormaliseMagnitude(magnitude float64) float64 {
	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) || magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(math.Max(magnitude, 1e-12))
	return clamp01((db - c.cfg.DBMin) / c.dbRange)
}

// DenormaliseMagnitude inverts NormaliseMagnitude.
func (c *Codec) DenormaliseMagnitude(normalised float64) float64 {
	db := clamp01(normalised)*c.dbRange + c.cfg.DBMin
	return math.Pow(10, db/20)
}

// NormaliseLogFrequency maps a frequency in Hz to [0, 1] on a log2 scale
// between the configured perceptual bounds.
func (c *Codec) NormaliseLogFrequency(frequency float64) float64 {
	if math.IsNaN(frequency) || math.IsInf(frequency, 0) || frequency <= 0 {
		return 0
	}
	if c.logFreqRange <= epsilon {
		return 0
	}
	clamped := math.Min(math.Max(frequency, c.cfg.MinFrequency), c.cfg.MaxFrequency)
	return clamp01((math.Log2(clamped) - c.logFreqMin) / c.logFreqRange)
}

// DenormaliseLogFrequency inverts NormaliseLogFrequency.
func (c *Codec) DenormaliseLogFrequency(normalised float64) float64 {
	if c.logFreqRange <= epsilon {
		return c.cfg.MinFrequency
	}
	logValue := c.logFreqMin + clamp01(normalised)*c.logFreqRange
	return math.Pow(2, logValue)
}

// EncodePhaseVector encodes a phase angle as a (cos, sin) pair rescaled
// to [0, 1]. A non-finite phase encodes the degenerate centre point.
func (c *Codec) EncodePhaseVector(phase float64) (cosine, sine float64) {
	if math.IsNaN(phase) || math.IsInf(phase, 0) {
		return unitOffset, unitOffset
	}
	return math.Cos(phase)*unitScale + unitOffset, math.Sin(phase)*unitScale + unitOffset
}

// DecodePhaseVector recovers a phase angle from encoded (cos, sin)
// channels. The pair is re-normalised to unit length; vectors shorter
// than the configured epsilon carry no direction, in which case valid is
// false and the caller must substitute a fallback phase.
func (c *Codec) DecodePhaseVector(encodedCosine, encodedSine float64) (phase float64, valid bool) {
	cosine := (clamp01(encodedCosine) - unitOffset) / unitScale
	sine := (clamp01(encodedSine) - unitOffset) / unitScale
	length := math.Sqrt(cosine*cosine + sine*sine)

	if !(length > c.cfg.MinPhaseVector) {
		return 0, false
	}
	return math.Atan2(sine/length, cosine/length), true
}
