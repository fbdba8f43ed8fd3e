// Package frontend turns a stream of 16-bit PCM samples into log-mel feature
// vectors, one per frame step.
//
// A Frontend runs six fixed-point stages in order: window, real FFT, mel
// filterbank, noise reduction, PCAN gain control and log scale. All buffers
// are sized by New; ProcessSamples does not allocate with the default
// transform backend. A Frontend is not safe for concurrent use; run one per
// stream.
package frontend

import (
	"fmt"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/algorithms/gain"
	"github.com/RyanBlaney/sonido-frontend/algorithms/logscale"
	"github.com/RyanBlaney/sonido-frontend/algorithms/noise"
	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/algorithms/windowing"
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
	"github.com/RyanBlaney/sonido-frontend/logging"
)

// Output is the result of one ProcessSamples call. Values is empty until a
// frame completes; when set it aliases an internal buffer that the next call
// overwrites.
type Output struct {
	Values      []uint16
	SamplesRead int
}

// Ready reports whether the call produced a feature vector.
func (o Output) Ready() bool {
	return len(o.Values) > 0
}

// Frontend is the streaming feature extractor.
type Frontend struct {
	config config.Config

	window     *windowing.State
	transform  *spectral.Transform
	filterbank *spectral.Filterbank
	noise      *noise.State
	gain       *gain.State
	logScale   *logscale.State

	correctionBits int
	values         []uint16
	features       []float32

	logger logging.Logger
}

// Option customizes a Frontend at construction.
type Option func(*options)

type options struct {
	logger  logging.Logger
	backend spectral.RealFFTBackend
}

// WithLogger sets the logger used for construction messages.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBackend overrides the transform backend named in the configuration.
func WithBackend(backend spectral.RealFFTBackend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// New validates cfg and builds every stage. A nil cfg uses DefaultConfig.
// On error no Frontend is returned.
func New(cfg *config.Config, opts ...Option) (*Frontend, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.GetGlobalLogger()
	}
	logger := o.logger.WithFields(logging.Fields{
		"component": "frontend",
	})

	f, err := build(cfg, o.backend)
	if err != nil {
		logger.Error(err, "Failed to construct frontend", logging.Fields{
			"sample_rate": cfg.SampleRate,
			"channels":    cfg.Filterbank.NumChannels,
		})
		return nil, err
	}
	f.logger = logger

	f.Reset()

	logger.Debug("Frontend constructed", logging.Fields{
		"sample_rate":     cfg.SampleRate,
		"window_size":     f.window.Size,
		"window_step":     f.window.Step,
		"fft_size":        f.transform.FFTSize,
		"backend":         f.transform.Backend(),
		"channels":        f.filterbank.NumChannels,
		"start_index":     f.filterbank.StartIndex,
		"end_index":       f.filterbank.EndIndex,
		"weights":         len(f.filterbank.Weights),
		"correction_bits": f.correctionBits,
		"pcan":            f.gain.Enabled,
		"log":             f.logScale.Enabled,
	})

	return f, nil
}

func build(cfg *config.Config, backend spectral.RealFFTBackend) (*Frontend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if backend == nil {
		name := cfg.Transform.Backend
		if name == "" {
			name = config.DefaultBackend
		}
		b, err := spectral.BackendByName(name)
		if err != nil {
			return nil, fmt.Errorf("select transform backend: %w", err)
		}
		backend = b
	}

	window, err := windowing.NewState(cfg.Window, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}

	transform, err := spectral.NewTransform(window.Size, backend)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	filterbank, err := spectral.NewFilterbank(cfg.Filterbank, cfg.SampleRate, transform.FFTSize/2+1)
	if err != nil {
		return nil, fmt.Errorf("filterbank: %w", err)
	}

	noiseState := noise.NewState(cfg.NoiseReduction, cfg.Filterbank.NumChannels)

	correctionBits := common.MostSignificantBit32(uint32(transform.FFTSize)) - 1 - spectral.FilterbankBits/2

	gainState, err := gain.NewState(cfg.GainControl, noiseState.Estimate(), cfg.NoiseReduction.SmoothingBits, correctionBits)
	if err != nil {
		return nil, fmt.Errorf("gain control: %w", err)
	}

	return &Frontend{
		config:         *cfg,
		window:         window,
		transform:      transform,
		filterbank:     filterbank,
		noise:          noiseState,
		gain:           gainState,
		logScale:       logscale.NewState(cfg.LogScale),
		correctionBits: correctionBits,
		values:         make([]uint16, cfg.Filterbank.NumChannels),
		features:       make([]float32, cfg.Filterbank.NumChannels),
	}, nil
}

// ProcessSamples consumes as many samples as the window can take and, if
// that completes a frame, returns its feature vector. Callers feed the
// unread remainder on the next call.
func (f *Frontend) ProcessSamples(samples []int16) Output {
	read, ready := f.window.ProcessSamples(samples)
	if !ready {
		return Output{SamplesRead: read}
	}

	// Scale the frame up to use the full 16-bit range before the transform.
	inputShift := 15 - common.MostSignificantBit32(uint32(f.window.MaxAbsOutputValue))
	bins := f.transform.Compute(f.window.Output, inputShift)

	energy := f.filterbank.ConvertFFTComplexToEnergy(bins)
	f.filterbank.AccumulateChannels(energy)
	signal := f.filterbank.Sqrt(inputShift)

	f.noise.Apply(signal)
	f.gain.Apply(signal)

	return Output{
		Values:      f.logScale.Apply(signal, f.values, f.correctionBits),
		SamplesRead: read,
	}
}

// Reset drops buffered audio and the noise estimate. Gain control and log
// scale keep no history.
func (f *Frontend) Reset() {
	f.window.Reset()
	f.transform.Reset()
	f.filterbank.Reset()
	f.noise.Reset()
}

// Config returns a copy of the configuration the frontend was built with.
func (f *Frontend) Config() config.Config {
	return f.config
}

// NumChannels is the length of every feature vector.
func (f *Frontend) NumChannels() int {
	return f.filterbank.NumChannels
}

// WindowSize is the frame length in samples.
func (f *Frontend) WindowSize() int {
	return f.window.Size
}

// StepSize is the number of new samples between frames.
func (f *Frontend) StepSize() int {
	return f.window.Step
}

// FFTSize is the transform length.
func (f *Frontend) FFTSize() int {
	return f.transform.FFTSize
}

// CorrectionBits is the log scale input correction derived from FFTSize.
func (f *Frontend) CorrectionBits() int {
	return f.correctionBits
}

// Backend names the transform backend in use.
func (f *Frontend) Backend() string {
	return f.transform.Backend()
}

// BufferedSamples is the number of samples waiting in the window.
func (f *Frontend) BufferedSamples() int {
	return f.window.InputUsed
}
