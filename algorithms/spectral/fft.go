package spectral

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	// ErrScratchSizing is returned when a backend cannot size its scratch memory.
	ErrScratchSizing = errors.New("fft scratch sizing failed")
	// ErrScratchInit is returned when a backend cannot initialize in the provided scratch.
	ErrScratchInit = errors.New("fft scratch initialization failed")
	// ErrUnknownBackend is returned by BackendByName for unregistered names.
	ErrUnknownBackend = errors.New("unknown fft backend")
)

// Complex16 is one fixed-point frequency bin.
type Complex16 struct {
	Real int16
	Imag int16
}

// ScratchSize is the amount of working memory a backend needs, in elements.
type ScratchSize struct {
	Real    int
	Complex int
}

// Scratch is caller-allocated working memory handed to a backend at Init.
// The transform owns the allocation; the backend owns the contents.
type Scratch struct {
	Real    []float64
	Complex []complex128
}

func newScratch(size ScratchSize) *Scratch {
	return &Scratch{
		Real:    make([]float64, size.Real),
		Complex: make([]complex128, size.Complex),
	}
}

// RealFFT computes a forward real-to-complex transform of a fixed-point frame.
// Forward writes len(input)/2+1 bins to output, scaled by 1/len(input) and
// saturated to int16, the convention of a stage-scaled integer real FFT.
type RealFFT interface {
	Forward(input []int16, output []Complex16)
}

// RealFFTBackend sizes and initializes RealFFT instances for a power-of-two
// transform size.
type RealFFTBackend interface {
	Name() string
	ScratchSize(fftSize int) (ScratchSize, error)
	Init(fftSize int, scratch *Scratch) (RealFFT, error)
}

var backends = map[string]RealFFTBackend{
	GonumBackend{}.Name(): GonumBackend{},
	GoDSPBackend{}.Name(): GoDSPBackend{},
}

// BackendByName returns a registered backend.
func BackendByName(name string) (RealFFTBackend, error) {
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, BackendNames())
	}
	return b, nil
}

// BackendNames lists the registered backends in sorted order.
func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkSize(fftSize int) error {
	if fftSize < 2 || !common.IsPowerOfTwo(fftSize) {
		return fmt.Errorf("transform size %d is not a power of two >= 2", fftSize)
	}
	return nil
}

// quantize rounds c/n to the nearest Complex16, saturating.
func quantize(c complex128, n float64) Complex16 {
	return Complex16{Real: round16(real(c) / n), Imag: round16(imag(c) / n)}
}

func round16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// GonumBackend runs gonum's real FFT. All working memory lives in the
// caller's scratch so Forward does not allocate.
type GonumBackend struct{}

func (GonumBackend) Name() string { return "gonum" }

func (GonumBackend) ScratchSize(fftSize int) (ScratchSize, error) {
	if err := checkSize(fftSize); err != nil {
		return ScratchSize{}, fmt.Errorf("%w: %v", ErrScratchSizing, err)
	}
	return ScratchSize{Real: fftSize, Complex: fftSize/2 + 1}, nil
}

func (b GonumBackend) Init(fftSize int, scratch *Scratch) (RealFFT, error) {
	size, err := b.ScratchSize(fftSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScratchInit, err)
	}
	if scratch == nil || len(scratch.Real) < size.Real || len(scratch.Complex) < size.Complex {
		return nil, fmt.Errorf("%w: scratch smaller than %+v", ErrScratchInit, size)
	}
	return &gonumFFT{
		fft:    fourier.NewFFT(fftSize),
		n:      float64(fftSize),
		seq:    scratch.Real[:size.Real],
		coeffs: scratch.Complex[:size.Complex],
	}, nil
}

type gonumFFT struct {
	fft    *fourier.FFT
	n      float64
	seq    []float64
	coeffs []complex128
}

func (g *gonumFFT) Forward(input []int16, output []Complex16) {
	for i, x := range input {
		g.seq[i] = float64(x)
	}
	g.fft.Coefficients(g.coeffs, g.seq)
	for i := range output {
		output[i] = quantize(g.coeffs[i], g.n)
	}
}

// GoDSPBackend runs go-dsp's FFTReal. It allocates on every call and is
// intended as a reference to cross-check the default backend.
type GoDSPBackend struct{}

func (GoDSPBackend) Name() string { return "godsp" }

func (GoDSPBackend) ScratchSize(fftSize int) (ScratchSize, error) {
	if err := checkSize(fftSize); err != nil {
		return ScratchSize{}, fmt.Errorf("%w: %v", ErrScratchSizing, err)
	}
	return ScratchSize{Real: fftSize}, nil
}

func (b GoDSPBackend) Init(fftSize int, scratch *Scratch) (RealFFT, error) {
	size, err := b.ScratchSize(fftSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScratchInit, err)
	}
	if scratch == nil || len(scratch.Real) < size.Real {
		return nil, fmt.Errorf("%w: scratch smaller than %+v", ErrScratchInit, size)
	}
	return &goDSPFFT{n: float64(fftSize), seq: scratch.Real[:size.Real]}, nil
}

type goDSPFFT struct {
	n   float64
	seq []float64
}

func (g *goDSPFFT) Forward(input []int16, output []Complex16) {
	for i, x := range input {
		g.seq[i] = float64(x)
	}
	coeffs := fft.FFTReal(g.seq)
	for i := range output {
		output[i] = quantize(coeffs[i], g.n)
	}
}
