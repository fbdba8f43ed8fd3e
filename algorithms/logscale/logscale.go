// Package logscale maps gain-controlled channel energies to 16-bit
// log-domain features.
package logscale

import (
	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
)

// State is the final stage. When Enabled is false values are only
// saturated to 16 bits.
type State struct {
	Enabled    bool
	ScaleShift int
}

// NewState copies the stage settings from cfg.
func NewState(cfg config.LogScaleConfig) *State {
	return &State{Enabled: cfg.Enable, ScaleShift: cfg.ScaleShift}
}

// log2FractionPart returns the Q16 fractional part of log2(x), where log2x
// is the integer part.
func log2FractionPart(x, log2x uint32) uint32 {
	frac := int32(x - 1<<log2x)
	if log2x < logScaleLog2 {
		frac <<= logScaleLog2 - log2x
	} else {
		frac >>= log2x - logScaleLog2
	}

	baseSeg := uint32(frac) >> (logScaleLog2 - logSegmentsLog2)
	const segUnit = logScale >> logSegmentsLog2
	c0 := int32(logLUT[baseSeg])
	c1 := int32(logLUT[baseSeg+1])
	segBase := int32(segUnit * baseSeg)
	relPos := ((c1 - c0) * (frac - segBase)) >> logScaleLog2
	return uint32(frac + c0 + relPos)
}

// Log returns round(ln(x) * 2^scaleShift) for x >= 1.
func Log(x uint32, scaleShift int) uint32 {
	integer := uint32(common.MostSignificantBit32(x)) - 1
	fraction := log2FractionPart(x, integer)
	log2 := integer<<logScaleLog2 + fraction
	const round = logScale / 2
	loge := uint32((uint64(logCoeff)*uint64(log2) + round) >> logScaleLog2)
	return (loge<<scaleShift + round) >> logScaleLog2
}

// Apply writes one 16-bit value per element of signal into out, which must
// be at least as long, and returns out[:len(signal)]. correctionBits undoes
// the filterbank's fixed-point headroom before the log is taken.
func (s *State) Apply(signal []uint32, out []uint16, correctionBits int) []uint16 {
	out = out[:len(signal)]
	for i, value := range signal {
		if s.Enabled {
			if correctionBits < 0 {
				value >>= -correctionBits
			} else {
				value <<= correctionBits
			}
			if value > 1 {
				value = Log(value, s.ScaleShift)
			} else {
				value = 0
			}
		}
		out[i] = common.SaturateUint16(value)
	}
	return out
}
