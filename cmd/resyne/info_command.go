package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synesthesia-audio/resyne/container"
	"github.com/synesthesia-audio/resyne/spectral"
	"github.com/synesthesia-audio/resyne/varispeed"
)

func newInfoCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <input.rsyn>",
		Short: "Inspect a spectrogram container",
		Args:  cobra.ExactArgs(1),
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
			binCount := img.BinCount()
			channels := img.Channels()
			inferredRate := codec.DetectSampleRate(img)
			fftSize := spectral.FFTSizeForBins(binCount)

			rows := [][]string{
				{"Frames", fmt.Sprintf("%d", img.Width)},
				{"Bins per channel", fmt.Sprintf("%d", binCount)},
				{"Channels", fmt.Sprintf("%d", channels)},
				{"FFT size", fmt.Sprintf("%d", fftSize)},
				{"Inferred sample rate", fmt.Sprintf("%.0f Hz", inferredRate)},
			}
			if img.Metadata.SampleRate > 0 {
				rows = append(rows, []string{"Metadata sample rate", fmt.Sprintf("%.0f Hz", img.Metadata.SampleRate)})
			}
			if img.Metadata.HopSize > 0 {
				rows = append(rows, []string{"Hop size", fmt.Sprintf("%d", img.Metadata.HopSize)})
			}
			if img.Metadata.WindowType != "" {
				rows = append(rows, []string{"Window", img.Metadata.WindowType})
			}
			if img.Metadata.Version != "" {
				rows = append(rows, []string{"Schema version", img.Metadata.Version})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Property", "Value"}, rows,
				[]columnAlignment{alignLeft, alignRight}))

			regions := detectVarispeedRegions(codec, img, inferredRate, fftSize, binCount)
			if len(regions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No varispeed regions detected.")
				return nil
			}

			regionRows := make([][]string, 0, len(regions))
			for _, region := range regions {
				regionRows = append(regionRows, []string{
					fmt.Sprintf("%d", region.StartFrame),
					fmt.Sprintf("%d", region.EndFrame),
					fmt.Sprintf("%.3f", region.PitchRatio),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Start frame", "End frame", "Pitch ratio"}, regionRows,
				[]columnAlignment{alignRight, alignRight, alignRight}))
			return nil
		},
	}
	return cmd
}

// detectVarispeedRegions decodes channel 0's frequency content and runs
// region detection on it.
func detectVarispeedRegions(codec *spectral.Codec, img *spectral.ColourNativeImage,
	sampleRate float64, fftSize, binCount int) []varispeed.Region {

	if img.Width == 0 || binCount == 0 {
		return nil
	}
	frequencies := make([][]float64, img.Width)
	column := make([]spectral.RGBAColour, binCount)
	for frame := 0; frame < img.Width; frame++ {
		for bin := 0; bin < binCount; bin++ {
			column[bin] = img.At(frame, bin)
		}
		_, _, freqs := codec.DecodeTimeFrame(column, sampleRate)
		frequencies[frame] = freqs
	}
	return varispeed.DetectRegions(frequencies, sampleRate, fftSize, 0)
}
