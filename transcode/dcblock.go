package transcode

import "math"

// dcBlocker is a one-pole DC blocking high-pass filter:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
type dcBlocker struct {
	pole   float64
	x1, y1 float64
}

// newDCBlocker places the pole for a -3 dB point near cutoffHz, using the
// small angle approximation R = 1 - 2*pi*fc/fs.
func newDCBlocker(sampleRate int, cutoffHz float64) *dcBlocker {
	pole := 1 - 2*math.Pi*cutoffHz/float64(sampleRate)
	return &dcBlocker{pole: min(max(pole, 0.001), 0.999)}
}

// process filters samples in place.
func (dc *dcBlocker) process(samples []float64) {
	for i, x := range samples {
		y := x - dc.x1 + dc.pole*dc.y1
		dc.x1, dc.y1 = x, y
		samples[i] = y
	}
}
