// Package windowing buffers incoming PCM into overlapping frames and applies
// a fixed-point window to each completed frame.
package windowing

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
)

// ErrInvalidWindow is returned when the configuration yields an empty frame
// or a step that does not fit inside the frame.
var ErrInvalidWindow = errors.New("invalid window configuration")

// State is the sliding window stage. Input keeps Size samples; after every
// completed frame the oldest Step samples are dropped and the rest is kept as
// overlap for the next frame.
type State struct {
	Size         int
	Step         int
	Coefficients []int16

	Input     []int16
	InputUsed int
	Output    []int16

	// MaxAbsOutputValue is the peak magnitude of the last completed frame.
	MaxAbsOutputValue int16
}

// NewState sizes the window for sampleRate and allocates all buffers.
func NewState(cfg config.WindowConfig, sampleRate int) (*State, error) {
	size := cfg.SizeMs * sampleRate / 1000
	step := cfg.StepSizeMs * sampleRate / 1000
	if size <= 0 || step <= 0 || step > size {
		return nil, fmt.Errorf("%w: size %d samples, step %d samples at %d Hz",
			ErrInvalidWindow, size, step, sampleRate)
	}

	return &State{
		Size:         size,
		Step:         step,
		Coefficients: NewHann(size).Coefficients(),
		Input:        make([]int16, size),
		Output:       make([]int16, size),
	}, nil
}

// ProcessSamples copies as many samples as fit into the input buffer and
// reports how many were taken. ready is true when a full frame was windowed
// into Output; in that case the buffer has already advanced by Step.
func (s *State) ProcessSamples(samples []int16) (read int, ready bool) {
	read = copy(s.Input[s.InputUsed:], samples)
	s.InputUsed += read

	if s.InputUsed < s.Size {
		return read, false
	}

	var maxAbs int32
	for i, x := range s.Input {
		v := (int32(x) * int32(s.Coefficients[i])) >> WindowBits
		// Q12 coefficients never exceed 4096, so v always fits int16.
		s.Output[i] = int16(v)
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}

	copy(s.Input, s.Input[s.Step:])
	s.InputUsed -= s.Step
	// |-32768| is the only value that does not fit; saturate it.
	s.MaxAbsOutputValue = common.SaturateInt16(maxAbs)

	return read, true
}

// Reset clears buffered audio and the peak tracker.
func (s *State) Reset() {
	clear(s.Input)
	clear(s.Output)
	s.InputUsed = 0
	s.MaxAbsOutputValue = 0
}
