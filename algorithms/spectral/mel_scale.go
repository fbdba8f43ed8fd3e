package spectral

import (
	"math"
)

// FreqToMel converts frequency in Hz to the natural-log mel scale
// 1127*ln(1 + f/700), evaluated in single precision.
func FreqToMel(freq float32) float32 {
	return float32(1127.0 * log1pf(freq/700.0))
}

// MelToFreq is the inverse of FreqToMel.
func MelToFreq(mel float32) float32 {
	return 700.0 * float32(math.Expm1(float64(mel/1127.0)))
}

// centerFrequencies returns n mel-spaced centers strictly above lower, the
// last one landing on upper.
func centerFrequencies(n int, lower, upper float32) []float32 {
	melLow := FreqToMel(lower)
	melHi := FreqToMel(upper)
	melSpacing := (melHi - melLow) / float32(n)

	centers := make([]float32, n)
	for i := range centers {
		centers[i] = melLow + float32(melSpacing*float32(i+1))
	}
	return centers
}

// quantizeWeight converts a filter weight and its complement to Q12.
func quantizeWeight(weight float32) (w, unweight int16) {
	w = int16(math.Floor(float64(float32(float32(weight*(1<<FilterbankBits)) + 0.5))))
	unweight = int16(math.Floor(float64(float32(float32((1.0-weight)*(1<<FilterbankBits)) + 0.5))))
	return w, unweight
}
