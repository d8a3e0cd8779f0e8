package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/synesthesia-audio/resyne/logging"
	"github.com/synesthesia-audio/resyne/spectral"
)

// fileConfig mirrors the codec parameters a config file may override.
// Zero values keep the defaults.
type fileConfig struct {
	DBMin               float64 `toml:"db_min"`
	DBMax               float64 `toml:"db_max"`
	MinFrequency        float64 `toml:"min_frequency"`
	MaxFrequency        float64 `toml:"max_frequency"`
	IntensityFloor      float64 `toml:"intensity_floor"`
	DefaultSampleRate   float64 `toml:"default_sample_rate"`
	DamageBlendRadius   int     `toml:"damage_blend_radius"`
	SmoothingIterations int     `toml:"smoothing_iterations"`
	WorkerCap           int     `toml:"worker_cap"`
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	rootCmd := &cobra.Command{
		Use:           "resyne",
		Short:         "Spectral image codec for audio editing round trips",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verboseFlag {
				logging.SetLevel(logging.DebugLevel)
			} else {
				logging.SetLevel(logging.WarnLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Codec configuration file (TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newEncodeCommand(&configFlag))
	rootCmd.AddCommand(newDecodeCommand(&configFlag))
	rootCmd.AddCommand(newInfoCommand(&configFlag))

	return rootCmd
}

// loadCodecConfig merges a TOML config file, when given, onto the codec
// defaults.
func loadCodecConfig(path string) (spectral.Config, error) {
	cfg := spectral.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var overrides fileConfig
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if overrides.DBMax > overrides.DBMin && overrides.DBMax != 0 {
		cfg.DBMin = overrides.DBMin
		cfg.DBMax = overrides.DBMax
	}
	if overrides.MinFrequency > 0 && overrides.MaxFrequency > overrides.MinFrequency {
		cfg.MinFrequency = overrides.MinFrequency
		cfg.MaxFrequency = overrides.MaxFrequency
	}
	if overrides.IntensityFloor > 0 {
		cfg.IntensityFloor = overrides.IntensityFloor
	}
	if overrides.DefaultSampleRate > 0 {
		cfg.DefaultSampleRate = overrides.DefaultSampleRate
	}
	if overrides.DamageBlendRadius > 0 {
		cfg.DamageBlendRadius = overrides.DamageBlendRadius
	}
	if overrides.SmoothingIterations > 0 {
		cfg.SmoothingIterations = overrides.SmoothingIterations
	}
	if overrides.WorkerCap > 0 {
		cfg.WorkerCap = overrides.WorkerCap
	}

	return cfg, nil
}
