// Package gain implements per-channel energy normalization (PCAN): each
// channel is scaled by a gain that falls with its noise estimate, then
// compressed.
package gain

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
)

const (
	// SNRBits is the fixed-point precision of the scaled signal.
	SNRBits = 12
	// OutputBits is the precision kept by Shrink.
	OutputBits = 6

	wideDynamicFunctionBits = 32
	// LUTSize holds two exact entries plus a 4-slot segment per interval.
	LUTSize = 4*wideDynamicFunctionBits - 3
)

// ErrInvalidShift is returned when the gain and correction bits leave a
// negative shift.
var ErrInvalidShift = errors.New("pcan shift out of range")

// State is the gain control stage. Estimate aliases the noise reduction
// estimates, so it always sees the current noise floor.
type State struct {
	Enabled  bool
	SNRShift int
	LUT      []int16

	estimate []uint32
}

// NewState builds the gain lookup table. The table is only built when cfg
// enables the stage; a disabled State passes signals through untouched.
func NewState(cfg config.GainControlConfig, estimate []uint32, smoothingBits, correctionBits int) (*State, error) {
	if !cfg.Enable {
		return &State{}, nil
	}

	snrShift := cfg.GainBits - correctionBits - SNRBits
	inputBits := smoothingBits - correctionBits
	if snrShift < 0 || snrShift > 63 || inputBits < 0 || inputBits > 31 {
		return nil, fmt.Errorf("%w: snr shift %d, input bits %d (gain bits %d, smoothing bits %d, correction %d)",
			ErrInvalidShift, snrShift, inputBits, cfg.GainBits, smoothingBits, correctionBits)
	}

	return &State{
		Enabled:  true,
		SNRShift: snrShift,
		LUT:      buildLUT(cfg, inputBits),
		estimate: estimate,
	}, nil
}

// buildLUT stores the gain at 0 and 1 exactly and a quadratic through three
// points for every power-of-two interval above that.
func buildLUT(cfg config.GainControlConfig, inputBits int) []int16 {
	lut := make([]int16, LUTSize)
	lut[0] = GainLookup(cfg, inputBits, 0)
	lut[1] = GainLookup(cfg, inputBits, 1)

	for interval := 2; interval <= wideDynamicFunctionBits; interval++ {
		x0 := uint32(1) << (interval - 1)
		x1 := x0 + x0>>1
		x2 := 2 * x0
		if interval == wideDynamicFunctionBits {
			x2 = x0 + (x0 - 1)
		}

		y0 := int32(GainLookup(cfg, inputBits, x0))
		y1 := int32(GainLookup(cfg, inputBits, x1))
		y2 := int32(GainLookup(cfg, inputBits, x2))

		d1 := y1 - y0
		d2 := y2 - y0
		a1 := 4*d1 - d2
		a2 := d2 - a1

		seg := lut[4*interval-6:]
		seg[0] = int16(y0)
		seg[1] = int16(a1)
		seg[2] = int16(a2)
	}
	return lut
}

// GainLookup evaluates 2^gainBits * (x/2^inputBits + offset)^-strength in
// single precision, rounded and clamped to int16.
func GainLookup(cfg config.GainControlConfig, inputBits int, x uint32) int16 {
	xf := float32(x) / float32(uint32(1)<<inputBits)
	pow := float32(math.Pow(float64(xf+cfg.Offset), float64(-cfg.Strength)))
	g := float32(float32(uint32(1)<<cfg.GainBits) * pow)
	if g > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(g + 0.5)
}

// WideDynamicFunction interpolates the gain for x from lut.
func WideDynamicFunction(x uint32, lut []int16) int16 {
	if x <= 2 {
		return lut[x]
	}

	interval := common.MostSignificantBit32(x)
	seg := lut[4*interval-6:]

	var frac int32
	if interval < 11 {
		frac = int32(x<<(11-interval)) & 0x3FF
	} else {
		frac = int32(x>>(interval-11)) & 0x3FF
	}

	result := (int32(seg[2]) * frac) >> 5
	result += int32(uint32(int32(seg[1])) << 5)
	result *= frac
	result = (result + 1<<14) >> 15
	result += int32(seg[0])
	return int16(result)
}

// Shrink compresses a Q12 SNR to OutputBits: quadratically below 2.0,
// linearly above.
func Shrink(x uint32) uint32 {
	if x < 2<<SNRBits {
		return (x * x) >> (2 + 2*SNRBits - OutputBits)
	}
	return (x >> (SNRBits - OutputBits)) - (1 << OutputBits)
}

// Apply scales each channel of signal by the gain for its noise estimate.
func (s *State) Apply(signal []uint32) {
	if !s.Enabled {
		return
	}
	for i, est := range s.estimate {
		gain := uint64(uint32(int32(WideDynamicFunction(est, s.LUT))))
		snr := uint32((uint64(signal[i]) * gain) >> s.SNRShift)
		signal[i] = Shrink(snr)
	}
}
