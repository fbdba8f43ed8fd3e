package frontend

import (
	"slices"

	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
)

// Snapshot is a deep copy of every table and buffer in a Frontend, enough to
// regenerate or inspect its state without touching the live instance.
type Snapshot struct {
	Config config.Config `json:"config" yaml:"config" msgpack:"config"`

	Window         WindowSnapshot         `json:"window" yaml:"window" msgpack:"window"`
	Transform      TransformSnapshot      `json:"transform" yaml:"transform" msgpack:"transform"`
	Filterbank     FilterbankSnapshot     `json:"filterbank" yaml:"filterbank" msgpack:"filterbank"`
	NoiseReduction NoiseReductionSnapshot `json:"noise_reduction" yaml:"noise_reduction" msgpack:"noise_reduction"`
	GainControl    GainControlSnapshot    `json:"gain_control" yaml:"gain_control" msgpack:"gain_control"`
	LogScale       LogScaleSnapshot       `json:"log_scale" yaml:"log_scale" msgpack:"log_scale"`

	CorrectionBits int `json:"correction_bits" yaml:"correction_bits" msgpack:"correction_bits"`
}

type WindowSnapshot struct {
	Size              int     `json:"size" yaml:"size" msgpack:"size"`
	Step              int     `json:"step" yaml:"step" msgpack:"step"`
	Coefficients      []int16 `json:"coefficients" yaml:"coefficients" msgpack:"coefficients"`
	Input             []int16 `json:"input" yaml:"input" msgpack:"input"`
	InputUsed         int     `json:"input_used" yaml:"input_used" msgpack:"input_used"`
	Output            []int16 `json:"output" yaml:"output" msgpack:"output"`
	MaxAbsOutputValue int16   `json:"max_abs_output_value" yaml:"max_abs_output_value" msgpack:"max_abs_output_value"`
}

type TransformSnapshot struct {
	Backend     string               `json:"backend" yaml:"backend" msgpack:"backend"`
	InputSize   int                  `json:"input_size" yaml:"input_size" msgpack:"input_size"`
	FFTSize     int                  `json:"fft_size" yaml:"fft_size" msgpack:"fft_size"`
	ScratchSize spectral.ScratchSize `json:"scratch_size" yaml:"scratch_size" msgpack:"scratch_size"`
}

type FilterbankSnapshot struct {
	NumChannels            int      `json:"num_channels" yaml:"num_channels" msgpack:"num_channels"`
	StartIndex             int      `json:"start_index" yaml:"start_index" msgpack:"start_index"`
	EndIndex               int      `json:"end_index" yaml:"end_index" msgpack:"end_index"`
	ChannelFrequencyStarts []int16  `json:"channel_frequency_starts" yaml:"channel_frequency_starts" msgpack:"channel_frequency_starts"`
	ChannelWeightStarts    []int16  `json:"channel_weight_starts" yaml:"channel_weight_starts" msgpack:"channel_weight_starts"`
	ChannelWidths          []int16  `json:"channel_widths" yaml:"channel_widths" msgpack:"channel_widths"`
	Weights                []int16  `json:"weights" yaml:"weights" msgpack:"weights"`
	Unweights              []int16  `json:"unweights" yaml:"unweights" msgpack:"unweights"`
	Work                   []uint64 `json:"work" yaml:"work" msgpack:"work"`
}

type NoiseReductionSnapshot struct {
	SmoothingBits      int      `json:"smoothing_bits" yaml:"smoothing_bits" msgpack:"smoothing_bits"`
	EvenSmoothing      uint16   `json:"even_smoothing" yaml:"even_smoothing" msgpack:"even_smoothing"`
	OddSmoothing       uint16   `json:"odd_smoothing" yaml:"odd_smoothing" msgpack:"odd_smoothing"`
	MinSignalRemaining uint16   `json:"min_signal_remaining" yaml:"min_signal_remaining" msgpack:"min_signal_remaining"`
	Estimate           []uint32 `json:"estimate" yaml:"estimate" msgpack:"estimate"`
}

type GainControlSnapshot struct {
	Enabled  bool    `json:"enabled" yaml:"enabled" msgpack:"enabled"`
	SNRShift int     `json:"snr_shift" yaml:"snr_shift" msgpack:"snr_shift"`
	LUT      []int16 `json:"lut,omitempty" yaml:"lut,omitempty" msgpack:"lut,omitempty"`
}

type LogScaleSnapshot struct {
	Enabled    bool `json:"enabled" yaml:"enabled" msgpack:"enabled"`
	ScaleShift int  `json:"scale_shift" yaml:"scale_shift" msgpack:"scale_shift"`
}

// Snapshot copies the current state. Later processing does not affect the
// returned value.
func (f *Frontend) Snapshot() Snapshot {
	w, fb, nr := f.window, f.filterbank, f.noise
	return Snapshot{
		Config: f.config,
		Window: WindowSnapshot{
			Size:              w.Size,
			Step:              w.Step,
			Coefficients:      slices.Clone(w.Coefficients),
			Input:             slices.Clone(w.Input),
			InputUsed:         w.InputUsed,
			Output:            slices.Clone(w.Output),
			MaxAbsOutputValue: w.MaxAbsOutputValue,
		},
		Transform: TransformSnapshot{
			Backend:     f.transform.Backend(),
			InputSize:   f.transform.InputSize,
			FFTSize:     f.transform.FFTSize,
			ScratchSize: f.transform.ScratchSize(),
		},
		Filterbank: FilterbankSnapshot{
			NumChannels:            fb.NumChannels,
			StartIndex:             fb.StartIndex,
			EndIndex:               fb.EndIndex,
			ChannelFrequencyStarts: slices.Clone(fb.ChannelFrequencyStarts),
			ChannelWeightStarts:    slices.Clone(fb.ChannelWeightStarts),
			ChannelWidths:          slices.Clone(fb.ChannelWidths),
			Weights:                slices.Clone(fb.Weights),
			Unweights:              slices.Clone(fb.Unweights),
			Work:                   slices.Clone(fb.Work()),
		},
		NoiseReduction: NoiseReductionSnapshot{
			SmoothingBits:      nr.SmoothingBits,
			EvenSmoothing:      nr.EvenSmoothing,
			OddSmoothing:       nr.OddSmoothing,
			MinSignalRemaining: nr.MinSignalRemaining,
			Estimate:           slices.Clone(nr.Estimate()),
		},
		GainControl: GainControlSnapshot{
			Enabled:  f.gain.Enabled,
			SNRShift: f.gain.SNRShift,
			LUT:      slices.Clone(f.gain.LUT),
		},
		LogScale: LogScaleSnapshot{
			Enabled:    f.logScale.Enabled,
			ScaleShift: f.logScale.ScaleShift,
		},
		CorrectionBits: f.correctionBits,
	}
}
