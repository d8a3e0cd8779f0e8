package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/wav"

	"github.com/synesthesia-audio/resyne/spectral"
)

// loadAudio reads a wav or flac file into per-channel float64 samples.
func loadAudio(path string) (audio [][]float64, sampleRate float64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	var stream beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		stream, format, err = flac.Decode(file)
	default:
		stream, format, err = wav.Decode(file)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("decode audio: %w", err)
	}
	defer stream.Close()

	channels := format.NumChannels
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}
	audio = make([][]float64, channels)

	buf := make([][2]float64, 512)
	for {
		n, ok := stream.Stream(buf)
		for i := 0; i < n; i++ {
			audio[0] = append(audio[0], buf[i][0])
			if channels > 1 {
				audio[1] = append(audio[1], buf[i][1])
			}
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, 0, fmt.Errorf("stream audio: %w", err)
	}
	if len(audio[0]) == 0 {
		return nil, 0, fmt.Errorf("no samples in %s", path)
	}

	return audio, float64(format.SampleRate), nil
}

// sliceStreamer adapts per-channel sample slices to the beep streaming
// interface for encoding. Mono audio is duplicated to both sides.
type sliceStreamer struct {
	channels [][]float64
	pos      int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (int, bool) {
	if len(s.channels) == 0 || s.pos >= len(s.channels[0]) {
		return 0, false
	}
	n := 0
	for ; n < len(samples) && s.pos < len(s.channels[0]); n++ {
		left := clampSample(s.channels[0][s.pos])
		right := left
		if len(s.channels) > 1 && s.pos < len(s.channels[1]) {
			right = clampSample(s.channels[1][s.pos])
		}
		samples[n][0] = left
		samples[n][1] = right
		s.pos++
	}
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func clampSample(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// writeWav writes per-channel samples as a 16-bit wav file.
func writeWav(path string, audio [][]float64, sampleRate float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	numChannels := len(audio)
	if numChannels > 2 {
		numChannels = 2
	}
	if numChannels < 1 {
		file.Close()
		return fmt.Errorf("no audio channels to write")
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(int(sampleRate)),
		NumChannels: numChannels,
		Precision:   2,
	}
	if err := wav.Encode(file, &sliceStreamer{channels: audio}, format); err != nil {
		file.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	return file.Close()
}

// writePNG exports the spectrogram as an 8-bit RGBA preview, low bins at
// the bottom.
func writePNG(path string, img *spectral.ColourNativeImage) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}

	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			pixel := img.At(x, y)
			out.SetRGBA(x, img.Height-y-1, color.RGBA{
				R: uint8(clampUnit(pixel.R) * 255),
				G: uint8(clampUnit(pixel.G) * 255),
				B: uint8(clampUnit(pixel.B) * 255),
				A: 255,
			})
		}
	}

	if err := png.Encode(file, out); err != nil {
		file.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return file.Close()
}
