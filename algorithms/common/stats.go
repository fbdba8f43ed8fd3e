package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics for one feature channel.
type Summary struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Median float64 `json:"median" yaml:"median"`
}

// Summarize computes a Summary of data using gonum. An empty slice yields a
// zero Summary.
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	s := Summary{
		Count:  len(data),
		Mean:   stat.Mean(data, nil),
		Min:    floats.Min(data),
		Max:    floats.Max(data),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(data) > 1 {
		s.StdDev = math.Sqrt(stat.Variance(data, nil))
	}
	return s
}

// ChannelAccumulator collects per-channel feature values across frames.
type ChannelAccumulator struct {
	channels [][]float64
}

// NewChannelAccumulator creates an accumulator for numChannels channels.
func NewChannelAccumulator(numChannels int) *ChannelAccumulator {
	return &ChannelAccumulator{channels: make([][]float64, numChannels)}
}

// Add appends one frame. Extra values beyond the channel count are ignored.
func (ca *ChannelAccumulator) Add(frame []float64) {
	for i := range min(len(frame), len(ca.channels)) {
		ca.channels[i] = append(ca.channels[i], frame[i])
	}
}

// Frames returns the number of frames added so far.
func (ca *ChannelAccumulator) Frames() int {
	if len(ca.channels) == 0 {
		return 0
	}
	return len(ca.channels[0])
}

// Summaries returns one Summary per channel.
func (ca *ChannelAccumulator) Summaries() []Summary {
	out := make([]Summary, len(ca.channels))
	for i, values := range ca.channels {
		out[i] = Summarize(values)
	}
	return out
}
