package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/synesthesia-audio/resyne/container"
	"github.com/synesthesia-audio/resyne/resynth"
	"github.com/synesthesia-audio/resyne/spectral"
)

func newEncodeCommand(configPath *string) *cobra.Command {
	var fftSize int
	var hopSize int
	var pngPath string

	cmd := &cobra.Command{
		Use:   "encode <input.wav|input.flac> <output.rsyn>",
		Short: "Encode an audio file into a spectrogram container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCodecConfig(*configPath)
			if err != nil {
				return err
			}
			if hopSize <= 0 {
				hopSize = fftSize / 2
			}

			audio, sampleRate, err := loadAudio(args[0])
			if err != nil {
				return err
			}

			analysis, err := resynth.Analyze(audio, sampleRate, fftSize, hopSize)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			codec := spectral.NewCodec(cfg)
			bar := progressbar.Default(100, "encoding")
			img := codec.Encode(analysis.Samples(), spectral.AudioMetadata{
				SampleRate:  sampleRate,
				FFTSize:     fftSize,
				HopSize:     hopSize,
				NumChannels: len(audio),
				WindowType:  "hann",
			}, func(fraction float64) {
				_ = bar.Set(int(fraction * 100))
			})
			_ = bar.Finish()

			if pngPath != "" {
				if err := writePNG(pngPath, img); err != nil {
					return err
				}
			}

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := container.Write(out, img); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "encoded %s: %d frames, %d bins, %d channel(s)\n",
				strings.TrimSpace(args[1]), img.Width, img.BinCount(), img.Channels())
			return nil
		},
	}

	cmd.Flags().IntVar(&fftSize, "fft", 2048, "FFT size")
	cmd.Flags().IntVar(&hopSize, "hop", 0, "Hop size in samples (default fft/2)")
	cmd.Flags().StringVar(&pngPath, "png", "", "Also export an 8-bit PNG preview to this path")

	return cmd
}
