// Package reconstruction recovers usable phase for spectrogram bins whose
// encoded phase was destroyed by external image edits. The strategies here
// cooperate: damage detection flags suspect bins, PGHI rebuilds phase from
// magnitude, phase locking and smoothing clean the rebuilt field, and
// vocoder alignment keeps it continuous with the unedited signal.
package reconstruction

import "math"

const (
	epsilon         = 1e-6
	minBinIntensity = 1e-6
	twoPi           = 2 * math.Pi
)

// WrapToPi wraps an angle to (-π, π].
func WrapToPi(value float64) float64 {
	wrapped := math.Mod(value+math.Pi, twoPi)
	if wrapped < 0 {
		wrapped += twoPi
	}
	return wrapped - math.Pi
}
