package windowing

import (
	"math"
)

// WindowBits is the fractional precision of the fixed-point coefficients.
const WindowBits = 12

// Hann is a periodic Hann window sampled at half-sample offsets and
// quantized to WindowBits of fraction.
type Hann struct {
	size         int
	coefficients []int16
}

// NewHann creates a new fixed-point Hann window
func NewHann(size int) *Hann {
	h := &Hann{size: size}
	h.generate()
	return h
}

// generate evaluates 0.5 - 0.5*cos(2*pi/N * (i + 0.5)) in single precision
// and rounds to the nearest Q12 value.
func (h *Hann) generate() {
	h.coefficients = make([]int16, h.size)
	if h.size == 0 {
		return
	}

	arg := float32(math.Pi) * 2.0 / float32(h.size)
	for i := range h.size {
		x := arg * (float32(i) + 0.5)
		value := 0.5 - float32(0.5*float32(math.Cos(float64(x))))
		h.coefficients[i] = int16(math.Floor(float64(float32(float32(value*(1<<WindowBits)) + 0.5))))
	}
}

// Coefficients returns the window coefficients. The slice is shared; callers
// must not modify it.
func (h *Hann) Coefficients() []int16 {
	return h.coefficients
}
