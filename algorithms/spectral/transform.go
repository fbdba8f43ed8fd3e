package spectral

import (
	"fmt"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
)

// Transform wraps a RealFFT with the frontend's sizing, scaling and
// zero-padding rules.
type Transform struct {
	InputSize int
	FFTSize   int

	// Input holds the scaled, zero-padded frame of FFTSize samples.
	Input []int16
	// Output holds FFTSize/2+1 bins.
	Output []Complex16

	backend RealFFTBackend
	scratch *Scratch
	fft     RealFFT
}

// NewTransform sizes the transform to the next power of two covering
// inputSize and initializes backend in freshly allocated scratch memory.
func NewTransform(inputSize int, backend RealFFTBackend) (*Transform, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("%w: input size %d", ErrScratchSizing, inputSize)
	}
	if backend == nil {
		backend = GonumBackend{}
	}

	fftSize := max(common.NextPowerOfTwo(inputSize), 2)

	size, err := backend.ScratchSize(fftSize)
	if err != nil {
		return nil, fmt.Errorf("size %s scratch for %d-point transform: %w", backend.Name(), fftSize, err)
	}
	scratch := newScratch(size)

	fft, err := backend.Init(fftSize, scratch)
	if err != nil {
		return nil, fmt.Errorf("init %s %d-point transform: %w", backend.Name(), fftSize, err)
	}

	return &Transform{
		InputSize: inputSize,
		FFTSize:   fftSize,
		Input:     make([]int16, fftSize),
		Output:    make([]Complex16, fftSize/2+1),
		backend:   backend,
		scratch:   scratch,
		fft:       fft,
	}, nil
}

// Backend returns the name of the backend in use.
func (t *Transform) Backend() string {
	return t.backend.Name()
}

// ScratchSize reports the scratch memory allocated for the backend.
func (t *Transform) ScratchSize() ScratchSize {
	return ScratchSize{Real: len(t.scratch.Real), Complex: len(t.scratch.Complex)}
}

// Compute shifts every sample of input left by scaleShift (wrapping as a
// 16-bit value), zero pads to FFTSize and runs the forward transform. The
// returned slice is Output and is overwritten by the next call.
func (t *Transform) Compute(input []int16, scaleShift int) []Complex16 {
	n := copy(t.Input, input[:min(len(input), t.InputSize)])
	for i := range n {
		t.Input[i] = int16(uint16(t.Input[i]) << scaleShift)
	}
	clear(t.Input[n:])

	t.fft.Forward(t.Input, t.Output)
	return t.Output
}

// Reset zeroes the input and output buffers. Scratch belongs to the backend
// and is left alone.
func (t *Transform) Reset() {
	clear(t.Input)
	clear(t.Output)
}
