package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrUnsupportedFormat is returned for input the decoder cannot identify or
// parse.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData is decoded mono 16-bit PCM at the decoder's target rate.
type AudioData struct {
	PCM        []int16        `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	Duration   time.Duration  `json:"duration"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata describes the source before conversion.
type AudioMetadata struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Samples    int    `json:"samples"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"`
	ResampleQuality  string        `json:"resample_quality" yaml:"resample_quality"` // "low", "medium", "high"
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"`

	// DCCutoffHz enables a DC blocking filter when positive.
	DCCutoffHz float64 `json:"dc_cutoff_hz" yaml:"dc_cutoff_hz"`

	// Raw input carries no header; these describe it.
	RawSampleRate int `json:"raw_sample_rate" yaml:"raw_sample_rate"`
	RawChannels   int `json:"raw_channels" yaml:"raw_channels"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 16000,
		ResampleQuality:  "high",
		MaxDuration:      0, // No limit
		RawSampleRate:    16000,
		RawChannels:      1,
	}
}

// Decoder converts WAV files and raw PCM into the frontend's input format.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// ValidateConfig checks the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive, got %d", d.config.TargetSampleRate)
	}
	if d.config.RawSampleRate <= 0 || d.config.RawChannels <= 0 {
		return fmt.Errorf("raw input needs a positive rate and channel count, got %d Hz x %d",
			d.config.RawSampleRate, d.config.RawChannels)
	}
	if d.config.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative")
	}
	if d.config.DCCutoffHz < 0 {
		return fmt.Errorf("dc cutoff must not be negative, got %v", d.config.DCCutoffHz)
	}
	if _, err := qualitySpec(d.config.ResampleQuality); err != nil {
		return err
	}
	return nil
}

// GetSupportedFormats lists the formats DecodeFile recognizes.
func (d *Decoder) GetSupportedFormats() []string {
	return []string{"wav", "raw", "pcm", "s16le"}
}

// DecodeFile picks a decoder by extension, falling back to the RIFF header.
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if err := d.ValidateConfig(); err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var data *AudioData
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")); ext {
	case "wav", "wave":
		data, err = d.DecodeWAV(file)
	case "raw", "pcm", "s16le":
		data, err = d.DecodeRaw(file)
	default:
		header := make([]byte, 4)
		if _, err := io.ReadFull(file, header); err != nil || !bytes.Equal(header, []byte("RIFF")) {
			return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, filename,
				strings.Join(d.GetSupportedFormats(), ", "))
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind audio file: %w", err)
		}
		data, err = d.DecodeWAV(file)
	}
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, err
	}

	logger.Debug("Audio file decoded", logging.Fields{
		"input_format":      data.Metadata.Format,
		"input_sample_rate": data.Metadata.SampleRate,
		"input_channels":    data.Metadata.Channels,
		"output_samples":    len(data.PCM),
		"duration":          data.Duration.String(),
	})
	return data, nil
}

// DecodeBytes decodes an in-memory WAV file, or raw PCM when data has no
// RIFF header.
func (d *Decoder) DecodeBytes(data []byte) (*AudioData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}
	if bytes.HasPrefix(data, []byte("RIFF")) {
		return d.DecodeWAV(bytes.NewReader(data))
	}
	return d.DecodeRaw(bytes.NewReader(data))
}

// DecodeWAV decodes an integer PCM WAV stream of any bit depth and channel
// count.
func (d *Decoder) DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV file", ErrUnsupportedFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read WAV PCM: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: WAV without a usable format chunk", ErrUnsupportedFormat)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, bitDepth)
	}

	meta := &AudioMetadata{
		Format:     "wav",
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		Samples:    len(buf.Data) / buf.Format.NumChannels,
	}
	if bitDepth == 8 {
		// 8-bit WAV samples are unsigned with silence at 128.
		for i := range buf.Data {
			buf.Data[i] -= 128
		}
	}
	mono := downmix(buf.Data, meta.Channels, float64(int64(1)<<(bitDepth-1)))
	return d.finish(mono, meta)
}

// DecodeRaw decodes headerless little-endian 16-bit PCM described by the
// configured raw rate and channel count.
func (d *Decoder) DecodeRaw(r io.Reader) (*AudioData, error) {
	if d.config.RawSampleRate <= 0 {
		return nil, fmt.Errorf("raw input needs a positive sample rate, got %d", d.config.RawSampleRate)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read raw PCM: %w", err)
	}

	ints := make([]int, len(raw)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}

	channels := max(d.config.RawChannels, 1)
	meta := &AudioMetadata{
		Format:     "raw",
		SampleRate: d.config.RawSampleRate,
		Channels:   channels,
		BitDepth:   16,
		Samples:    len(ints) / channels,
	}
	return d.finish(downmix(ints, channels, 32768), meta)
}

// finish trims, filters, resamples and requantizes normalized mono samples.
func (d *Decoder) finish(mono []float64, meta *AudioMetadata) (*AudioData, error) {
	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(meta.SampleRate))
		if limit < len(mono) {
			mono = mono[:limit]
		}
	}
	if d.config.DCCutoffHz > 0 {
		newDCBlocker(meta.SampleRate, d.config.DCCutoffHz).process(mono)
	}

	rate := d.config.TargetSampleRate
	if rate <= 0 {
		rate = meta.SampleRate
	}
	if meta.SampleRate != rate && len(mono) > 0 {
		var err error
		mono, err = resample(mono, meta.SampleRate, rate, d.config.ResampleQuality)
		if err != nil {
			return nil, err
		}
	}

	pcm := make([]int16, len(mono))
	for i, v := range mono {
		pcm[i] = int16(max(min(math.Round(v*32768), math.MaxInt16), math.MinInt16))
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: rate,
		Channels:   1,
		Duration:   time.Duration(len(pcm)) * time.Second / time.Duration(rate),
		Metadata:   meta,
	}, nil
}

// downmix averages interleaved channels and scales to [-1, 1).
func downmix(data []int, channels int, fullScale float64) []float64 {
	frames := len(data) / channels
	mono := make([]float64, frames)
	for i := range mono {
		var sum int64
		for ch := range channels {
			sum += int64(data[i*channels+ch])
		}
		mono[i] = float64(sum) / float64(channels) / fullScale
	}
	return mono
}

func qualitySpec(name string) (resampling.QualitySpec, error) {
	switch name {
	case "low":
		return resampling.QualitySpec{Preset: resampling.QualityLow}, nil
	case "medium":
		return resampling.QualitySpec{Preset: resampling.QualityMedium}, nil
	case "high", "":
		return resampling.QualitySpec{Preset: resampling.QualityHigh}, nil
	default:
		return resampling.QualitySpec{}, fmt.Errorf("unknown resample quality %q (want low, medium or high)", name)
	}
}

func resample(samples []float64, from, to int, quality string) ([]float64, error) {
	spec, err := qualitySpec(quality)
	if err != nil {
		return nil, err
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    spec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush: %w", err)
	}
	return append(out, tail...), nil
}
