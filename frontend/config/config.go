// Package config holds the configuration surface of the feature frontend.
//
// Fractional parameters are float32 so their fixed-point conversions match
// single-precision reference tables bit for bit.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// ErrInvalidConfig is returned (wrapped) for any configuration that cannot
// build a pipeline.
var ErrInvalidConfig = errors.New("invalid frontend configuration")

// Config aggregates the per-stage configuration of a frontend.
type Config struct {
	SampleRate     int                  `json:"sample_rate" yaml:"sample_rate"`
	Window         WindowConfig         `json:"window" yaml:"window"`
	Transform      TransformConfig      `json:"transform" yaml:"transform"`
	Filterbank     FilterbankConfig     `json:"filterbank" yaml:"filterbank"`
	NoiseReduction NoiseReductionConfig `json:"noise_reduction" yaml:"noise_reduction"`
	GainControl    GainControlConfig    `json:"gain_control" yaml:"gain_control"`
	LogScale       LogScaleConfig       `json:"log_scale" yaml:"log_scale"`
}

type WindowConfig struct {
	SizeMs     int `json:"size_ms" yaml:"size_ms"`
	StepSizeMs int `json:"step_size_ms" yaml:"step_size_ms"`
}

// TransformConfig selects the real FFT backend by name ("gonum" or "godsp").
type TransformConfig struct {
	Backend string `json:"backend" yaml:"backend"`
}

type FilterbankConfig struct {
	NumChannels      int     `json:"num_channels" yaml:"num_channels"`
	LowerBandLimit   float32 `json:"lower_band_limit" yaml:"lower_band_limit"`
	UpperBandLimit   float32 `json:"upper_band_limit" yaml:"upper_band_limit"`
	OutputScaleShift int     `json:"output_scale_shift" yaml:"output_scale_shift"`
}

type NoiseReductionConfig struct {
	// SmoothingBits is the extra precision of the noise estimate over the signal.
	SmoothingBits int `json:"smoothing_bits" yaml:"smoothing_bits"`
	// EvenSmoothing and OddSmoothing are the EMA coefficients for even and odd channels.
	EvenSmoothing float32 `json:"even_smoothing" yaml:"even_smoothing"`
	OddSmoothing  float32 `json:"odd_smoothing" yaml:"odd_smoothing"`
	// MinSignalRemaining is the fraction of the signal kept after subtraction.
	MinSignalRemaining float32 `json:"min_signal_remaining" yaml:"min_signal_remaining"`
}

type GainControlConfig struct {
	Enable   bool    `json:"enable" yaml:"enable"`
	Strength float32 `json:"strength" yaml:"strength"`
	Offset   float32 `json:"offset" yaml:"offset"`
	GainBits int     `json:"gain_bits" yaml:"gain_bits"`
}

type LogScaleConfig struct {
	Enable     bool `json:"enable" yaml:"enable"`
	ScaleShift int  `json:"scale_shift" yaml:"scale_shift"`
}

const (
	DefaultSampleRate = 16000
	DefaultBackend    = "gonum"
)

// DefaultConfig returns the keyword-spotting configuration: 30 ms frames every
// 10 ms, 40 channels between 125 and 7500 Hz at 16 kHz.
func DefaultConfig() *Config {
	return &Config{
		SampleRate: DefaultSampleRate,
		Window:     DefaultWindowConfig(),
		Transform:  TransformConfig{Backend: DefaultBackend},
		Filterbank: DefaultFilterbankConfig(),
		NoiseReduction: NoiseReductionConfig{
			SmoothingBits:      10,
			EvenSmoothing:      0.025,
			OddSmoothing:       0.06,
			MinSignalRemaining: 0.05,
		},
		GainControl: GainControlConfig{
			Enable:   true,
			Strength: 0.95,
			Offset:   80.0,
			GainBits: 21,
		},
		LogScale: LogScaleConfig{
			Enable:     true,
			ScaleShift: 6,
		},
	}
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{SizeMs: 30, StepSizeMs: 10}
}

func DefaultFilterbankConfig() FilterbankConfig {
	return FilterbankConfig{
		NumChannels:      40,
		LowerBandLimit:   125.0,
		UpperBandLimit:   7500.0,
		OutputScaleShift: 7,
	}
}

// Validate reports the first problem found in c, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidConfig, c.SampleRate)
	}
	if c.Window.SizeMs <= 0 || c.Window.StepSizeMs <= 0 {
		return fmt.Errorf("%w: window size %d ms and step %d ms must be positive",
			ErrInvalidConfig, c.Window.SizeMs, c.Window.StepSizeMs)
	}
	if c.Window.StepSizeMs > c.Window.SizeMs {
		return fmt.Errorf("%w: window step %d ms exceeds size %d ms",
			ErrInvalidConfig, c.Window.StepSizeMs, c.Window.SizeMs)
	}
	if err := c.Filterbank.Validate(); err != nil {
		return err
	}

	nr := c.NoiseReduction
	if nr.SmoothingBits < 0 || nr.SmoothingBits > 16 {
		return fmt.Errorf("%w: smoothing bits %d out of range [0,16]", ErrInvalidConfig, nr.SmoothingBits)
	}
	for name, v := range map[string]float32{
		"even_smoothing":       nr.EvenSmoothing,
		"odd_smoothing":        nr.OddSmoothing,
		"min_signal_remaining": nr.MinSignalRemaining,
	} {
		if v < 0 || v >= 1 {
			return fmt.Errorf("%w: %s %v out of range [0,1)", ErrInvalidConfig, name, v)
		}
	}

	if c.GainControl.Enable {
		gc := c.GainControl
		if gc.GainBits <= 0 || gc.GainBits > 30 {
			return fmt.Errorf("%w: gain bits %d out of range (0,30]", ErrInvalidConfig, gc.GainBits)
		}
		if gc.Offset <= 0 {
			return fmt.Errorf("%w: gain offset %v must be positive", ErrInvalidConfig, gc.Offset)
		}
		if gc.Strength < 0 {
			return fmt.Errorf("%w: gain strength %v must not be negative", ErrInvalidConfig, gc.Strength)
		}
	}
	if c.LogScale.ScaleShift < 0 || c.LogScale.ScaleShift > 16 {
		return fmt.Errorf("%w: log scale shift %d out of range [0,16]", ErrInvalidConfig, c.LogScale.ScaleShift)
	}
	return nil
}

// Validate checks the band limits and channel count of a filterbank.
func (fc FilterbankConfig) Validate() error {
	if fc.NumChannels < 1 {
		return fmt.Errorf("%w: filterbank needs at least one channel, got %d", ErrInvalidConfig, fc.NumChannels)
	}
	if fc.LowerBandLimit < 0 {
		return fmt.Errorf("%w: lower band limit %v is negative", ErrInvalidConfig, fc.LowerBandLimit)
	}
	if fc.UpperBandLimit <= fc.LowerBandLimit {
		return fmt.Errorf("%w: upper band limit %v must be greater than lower %v",
			ErrInvalidConfig, fc.UpperBandLimit, fc.LowerBandLimit)
	}
	return nil
}

// Parse decodes YAML (or JSON) onto the defaults, so omitted fields keep
// their default values.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
