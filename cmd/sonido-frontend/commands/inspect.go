package commands

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/sonido-frontend/frontend"
)

var (
	inspectFull   bool
	inspectFormat string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the tables a configuration produces",
	Long: `Build a frontend from the configuration and print its derived layout:
frame sizes, transform size, filterbank band edges and the gain and log
scale parameters. With --full every table (window coefficients, band
weights, the PCAN lookup table) is included.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fe, err := frontend.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to build frontend: %w", err)
		}

		var v any = summarize(fe)
		if inspectFull {
			v = fe.Snapshot()
		}

		var data []byte
		switch inspectFormat {
		case "yaml":
			data, err = yaml.Marshal(v)
		case "json":
			data, err = json.MarshalIndent(v, "", "  ")
			data = append(data, '\n')
		case "msgpack":
			data, err = msgpack.Marshal(v)
		default:
			return fmt.Errorf("unknown format %q (want yaml, json or msgpack)", inspectFormat)
		}
		if err != nil {
			return fmt.Errorf("failed to encode: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFull, "full", false, "include every table")
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "yaml", "output format (yaml, json, msgpack)")

	rootCmd.AddCommand(inspectCmd)
}

type layoutSummary struct {
	SampleRate     int    `json:"sample_rate" yaml:"sample_rate"`
	WindowSize     int    `json:"window_size" yaml:"window_size"`
	StepSize       int    `json:"step_size" yaml:"step_size"`
	FFTSize        int    `json:"fft_size" yaml:"fft_size"`
	Backend        string `json:"backend" yaml:"backend"`
	Channels       int    `json:"channels" yaml:"channels"`
	StartIndex     int    `json:"start_index" yaml:"start_index"`
	EndIndex       int    `json:"end_index" yaml:"end_index"`
	Weights        int    `json:"weights" yaml:"weights"`
	CorrectionBits int    `json:"correction_bits" yaml:"correction_bits"`
	PCAN           bool   `json:"pcan" yaml:"pcan"`
	SNRShift       int    `json:"snr_shift,omitempty" yaml:"snr_shift,omitempty"`
	LogScale       bool   `json:"log_scale" yaml:"log_scale"`
	ScaleShift     int    `json:"scale_shift" yaml:"scale_shift"`
}

func summarize(fe *frontend.Frontend) layoutSummary {
	s := fe.Snapshot()
	return layoutSummary{
		SampleRate:     s.Config.SampleRate,
		WindowSize:     s.Window.Size,
		StepSize:       s.Window.Step,
		FFTSize:        s.Transform.FFTSize,
		Backend:        s.Transform.Backend,
		Channels:       s.Filterbank.NumChannels,
		StartIndex:     s.Filterbank.StartIndex,
		EndIndex:       s.Filterbank.EndIndex,
		Weights:        len(s.Filterbank.Weights),
		CorrectionBits: s.CorrectionBits,
		PCAN:           s.GainControl.Enabled,
		SNRShift:       s.GainControl.SNRShift,
		LogScale:       s.LogScale.Enabled,
		ScaleShift:     s.LogScale.ScaleShift,
	}
}
