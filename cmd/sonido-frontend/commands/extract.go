package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/frontend"
	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/transcode"
)

var (
	extractInput   string
	extractOutput  string
	extractFormat  string
	extractBackend string
	extractScaled  bool
	extractStats   bool
	extractRawRate int
	extractQuality string
	extractDC      float64
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Compute features for an audio file or raw PCM stream",
	Long: `Compute one feature vector per frame step.

Input is a WAV file (any integer bit depth, mixed down to mono and
resampled to the configured rate), a raw little-endian 16-bit PCM file
(.raw, .pcm, .s16le), or '-' for raw mono PCM on stdin at the configured
sample rate.

Each frame is written as a record {"index": n, "features": [...]}, either
as JSON lines or as a stream of msgpack maps.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractInput, "input", "i", "", "input audio file, or - for raw PCM on stdin")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output file (default: stdout)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "record format (json, msgpack)")
	extractCmd.Flags().StringVar(&extractBackend, "backend", "", "override the transform backend (gonum, godsp)")
	extractCmd.Flags().BoolVar(&extractScaled, "scaled", false, "emit float features scaled to the model input range")
	extractCmd.Flags().BoolVar(&extractStats, "stats", false, "print per-channel statistics to stderr when done")
	extractCmd.Flags().IntVar(&extractRawRate, "raw-rate", 0, "sample rate of raw PCM files (default: configured rate)")
	extractCmd.Flags().StringVar(&extractQuality, "quality", "high", "resample quality (low, medium, high)")
	extractCmd.Flags().Float64Var(&extractDC, "dc-cutoff", 0, "DC blocking filter cutoff in Hz for file input (0: off)")
	_ = extractCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(extractCmd)
}

// featureRecord is one output frame.
type featureRecord struct {
	Index    int       `json:"index" msgpack:"index"`
	Features []uint16  `json:"features,omitempty" msgpack:"features,omitempty"`
	Scaled   []float32 `json:"scaled,omitempty" msgpack:"scaled,omitempty"`
}

type recordEncoder interface {
	Encode(v any) error
}

func newRecordEncoder(format string, w io.Writer) (recordEncoder, error) {
	switch format {
	case "json", "jsonl":
		return json.NewEncoder(w), nil
	case "msgpack":
		return msgpack.NewEncoder(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json or msgpack)", format)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if extractBackend != "" {
		cfg.Transform.Backend = extractBackend
	}

	logger := logging.WithFields(logging.Fields{
		"component": "extract",
		"input":     extractInput,
	})

	fe, err := frontend.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build frontend: %w", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if extractOutput != "" {
		f, err := os.Create(extractOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)

	enc, err := newRecordEncoder(extractFormat, bw)
	if err != nil {
		return err
	}

	var acc *common.ChannelAccumulator
	var scaled64 []float64
	if extractStats {
		acc = common.NewChannelAccumulator(fe.NumChannels())
	}

	var scaled []float32
	index := 0
	emit := func(o frontend.Output) error {
		rec := featureRecord{Index: index}
		if extractScaled {
			scaled = frontend.ScaleFeatures(scaled, o.Values)
			rec.Scaled = scaled
		} else {
			rec.Features = o.Values
		}
		if acc != nil {
			scaled64 = frontend.ScaleFeatures64(scaled64, o.Values)
			acc.Add(scaled64)
		}
		index++
		return enc.Encode(rec)
	}

	start := time.Now()
	var frames int
	if extractInput == "-" {
		frames, err = fe.Stream(cmd.Context(), cmd.InOrStdin(), emit)
	} else {
		frames, err = extractFile(fe, cfg.SampleRate, emit)
	}
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.Info("Features extracted", logging.Fields{
		"frames":   frames,
		"channels": fe.NumChannels(),
		"backend":  fe.Backend(),
		"elapsed":  time.Since(start).String(),
	})

	if acc != nil {
		return writeStats(cmd.ErrOrStderr(), acc)
	}
	return nil
}

func extractFile(fe *frontend.Frontend, sampleRate int, emit func(frontend.Output) error) (int, error) {
	dcfg := transcode.DefaultDecoderConfig()
	dcfg.TargetSampleRate = sampleRate
	dcfg.RawSampleRate = sampleRate
	if extractRawRate > 0 {
		dcfg.RawSampleRate = extractRawRate
	}
	dcfg.ResampleQuality = extractQuality
	dcfg.DCCutoffHz = extractDC

	decoded, err := transcode.NewDecoder(dcfg).DecodeFile(extractInput)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", extractInput, err)
	}
	return fe.Drain(decoded.PCM, emit)
}

type channelStats struct {
	Frames   int              `yaml:"frames"`
	Channels []common.Summary `yaml:"channels"`
}

func writeStats(w io.Writer, acc *common.ChannelAccumulator) error {
	data, err := yaml.Marshal(channelStats{
		Frames:   acc.Frames(),
		Channels: acc.Summaries(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	_, err = w.Write(data)
	return err
}
