// Package noise tracks a per-channel noise floor and subtracts it from the
// filterbank output.
package noise

import (
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
)

// ReductionBits is the fixed-point precision of the smoothing coefficients.
const ReductionBits = 14

// State holds the running estimate for each channel, kept SmoothingBits above
// the signal's own scale.
type State struct {
	SmoothingBits      int
	EvenSmoothing      uint16
	OddSmoothing       uint16
	MinSignalRemaining uint16

	estimate []uint32
}

// NewState quantizes the smoothing coefficients and allocates one estimate
// per channel.
func NewState(cfg config.NoiseReductionConfig, numChannels int) *State {
	return &State{
		SmoothingBits:      cfg.SmoothingBits,
		EvenSmoothing:      quantize(cfg.EvenSmoothing),
		OddSmoothing:       quantize(cfg.OddSmoothing),
		MinSignalRemaining: quantize(cfg.MinSignalRemaining),
		estimate:           make([]uint32, numChannels),
	}
}

// quantize truncates a fraction in [0,1) to Q14.
func quantize(v float32) uint16 {
	return uint16(float32(v * (1 << ReductionBits)))
}

// Apply updates the estimates with signal and replaces each value with what
// remains after subtracting its estimate, never less than MinSignalRemaining
// of the original.
func (s *State) Apply(signal []uint32) {
	for i := range s.estimate {
		smoothing := uint64(s.OddSmoothing)
		if i&1 == 0 {
			smoothing = uint64(s.EvenSmoothing)
		}
		oneMinusSmoothing := (1 << ReductionBits) - smoothing

		scaledUp := signal[i] << s.SmoothingBits
		estimate := uint32((uint64(scaledUp)*smoothing + uint64(s.estimate[i])*oneMinusSmoothing) >> ReductionBits)
		s.estimate[i] = estimate

		estimate = min(estimate, scaledUp)
		floor := uint32((uint64(signal[i]) * uint64(s.MinSignalRemaining)) >> ReductionBits)
		subtracted := (scaledUp - estimate) >> s.SmoothingBits
		signal[i] = max(subtracted, floor)
	}
}

// Estimate returns the live per-channel estimates.
func (s *State) Estimate() []uint32 {
	return s.estimate
}

// NumChannels returns the number of channels tracked.
func (s *State) NumChannels() int {
	return len(s.estimate)
}

// Reset zeroes the estimates.
func (s *State) Reset() {
	clear(s.estimate)
}
