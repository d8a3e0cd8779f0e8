package spectral

// Config carries the fixed numeric parameters of the codec. It is copied
// into the Codec at construction time so multiple codecs with different
// parameters can coexist.
type Config struct {
	// Magnitude is stored as dB linearly rescaled from [DBMin, DBMax] to [0, 1]
	DBMin float64
	DBMax float64

	// Perceptual frequency bounds for the log-frequency channel, in Hz
	MinFrequency float64
	MaxFrequency float64

	// Magnitudes at or below this value are treated as silence
	IntensityFloor float64

	// Minimum length of a decoded (cos, sin) pair before the phase
	// direction is considered unrecoverable
	MinPhaseVector float64

	// Sample-rate inference parameters
	DefaultSampleRate   float64
	MinSampleRate       float64
	MaxSampleRate       float64
	CommonSampleRates   []float64
	SampleRateTolerance float64 // relative tolerance when bucketing candidates
	MinRateVotes        int     // minimum candidates before a bucket qualifies

	// Upper bound on bins per channel, guards against absurd image heights
	MaxBinCount int

	// Radius of the raised-cosine damage blend, in bins
	DamageBlendRadius int

	// Phase smoothing passes applied to reconstructed phase
	SmoothingIterations int

	WorkerCap int
}

// DefaultConfig returns the codec parameters used by the reference encoder.
func DefaultConfig() Config {
	return Config{
		DBMin:               -140.0,
		DBMax:               40.0,
		MinFrequency:        20.0,
		MaxFrequency:        20000.0,
		IntensityFloor:      1e-6,
		MinPhaseVector:      1e-4,
		DefaultSampleRate:   44100.0,
		MinSampleRate:       8000.0,
		MaxSampleRate:       384000.0,
		CommonSampleRates:   []float64{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000, 384000},
		SampleRateTolerance: 0.002,
		MinRateVotes:        8,
		MaxBinCount:         4096,
		DamageBlendRadius:   3,
		SmoothingIterations: 3,
		WorkerCap:           8,
	}
}
