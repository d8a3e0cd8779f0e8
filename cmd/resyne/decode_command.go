package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/synesthesia-audio/resyne/container"
	"github.com/synesthesia-audio/resyne/resynth"
	"github.com/synesthesia-audio/resyne/spectral"
	"github.com/synesthesia-audio/resyne/varispeed"
)

func newDecodeCommand(configPath *string) *cobra.Command {
	var rateFlag float64
	var correctVarispeed bool
	var normalise bool

	cmd := &cobra.Command{
		Use:   "decode <input.rsyn> <output.wav>",
		Short: "Decode a spectrogram container back into audio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCodecConfig(*configPath)
			if err != nil {
				return err
			}

			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			img, err := container.Read(in)
			in.Close()
			if err != nil {
				return err
			}

			codec := spectral.NewCodec(cfg)
			bar := progressbar.Default(100, "decoding")
			result := codec.Decode(img, spectral.DecodeOptions{
				SampleRate: rateFlag,
				OnProgress: func(fraction float64) {
					_ = bar.Set(int(fraction * 100))
				},
			})
			_ = bar.Finish()
			if len(result.Samples) == 0 {
				return fmt.Errorf("image decoded to no frames")
			}

			audio, err := resynth.Reconstruct(result.Samples, result.HopSize)
			if err != nil {
				return fmt.Errorf("reconstruct: %w", err)
			}

			if correctVarispeed {
				frequencies := make([][]float64, len(result.Samples))
				for frame, sample := range result.Samples {
					if len(sample.Frequencies) > 0 {
						frequencies[frame] = sample.Frequencies[0]
					}
				}
				regions := varispeed.DetectRegions(frequencies, result.SampleRate, result.FFTSize, 0)
				if len(regions) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "correcting %d varispeed region(s)\n", len(regions))
					for ch := range audio {
						audio[ch] = varispeed.ApplyRegions(audio[ch], regions, result.HopSize, 0)
					}
				}
			}

			if normalise {
				resynth.PeakNormalise(audio, 0.98)
			}

			if err := writeWav(args[1], audio, result.SampleRate); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "decoded %d frames at %.0f Hz to %s\n",
				len(result.Samples), result.SampleRate, args[1])
			return nil
		},
	}

	cmd.Flags().Float64Var(&rateFlag, "rate", 0, "Override sample rate instead of inferring it")
	cmd.Flags().BoolVar(&correctVarispeed, "varispeed", false, "Detect and correct varispeed regions")
	cmd.Flags().BoolVar(&normalise, "normalize", false, "Peak-normalise the output")

	return cmd
}
