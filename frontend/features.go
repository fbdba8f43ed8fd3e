package frontend

import (
	"gonum.org/v1/gonum/floats"
)

// Float32Scale maps 16-bit log features to the float range classifiers are
// trained on (10/256).
const Float32Scale = 0.0390625

// ProcessOutput is the float form of Output.
type ProcessOutput struct {
	Features    []float32
	SamplesRead int
}

// ScaleFeatures writes values*Float32Scale into dst, growing it if needed,
// and returns the filled slice.
func ScaleFeatures(dst []float32, values []uint16) []float32 {
	dst = resize(dst, len(values))
	for i, v := range values {
		dst[i] = float32(v) * Float32Scale
	}
	return dst
}

// ScaleFeatures64 is ScaleFeatures for float64 consumers.
func ScaleFeatures64(dst []float64, values []uint16) []float64 {
	dst = resize(dst, len(values))
	for i, v := range values {
		dst[i] = float64(v)
	}
	floats.Scale(Float32Scale, dst)
	return dst
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// ProcessFloat is ProcessSamples with the features scaled to float32. The
// Features slice is reused by the next call.
func (f *Frontend) ProcessFloat(samples []int16) ProcessOutput {
	out := f.ProcessSamples(samples)
	if !out.Ready() {
		return ProcessOutput{SamplesRead: out.SamplesRead}
	}
	return ProcessOutput{
		Features:    ScaleFeatures(f.features, out.Values),
		SamplesRead: out.SamplesRead,
	}
}
