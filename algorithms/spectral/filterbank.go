package spectral

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-frontend/algorithms/common"
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
)

const (
	// FilterbankBits is the fixed-point precision of the band weights.
	FilterbankBits = 12

	// Band starts are aligned to this many bins.
	filterbankIndexAlignment = 2
	// Band widths are padded to a multiple of this many bins.
	filterbankChannelBlockSize = 4
)

// ErrEndIndexOutOfRange is returned when the highest band reaches past the
// last spectrum bin.
var ErrEndIndexOutOfRange = errors.New("filterbank end index is above spectrum size")

// Filterbank integrates spectral energy into triangular mel bands. Bands are
// laid out as channels+1 half-triangles; the extra leading band only feeds the
// unweighted side of channel 0 and is dropped from the output.
type Filterbank struct {
	NumChannels int
	StartIndex  int
	EndIndex    int

	ChannelFrequencyStarts []int16
	ChannelWeightStarts    []int16
	ChannelWidths          []int16
	Weights                []int16
	Unweights              []int16

	work   []uint64
	energy []int32
	output []uint32
}

// NewFilterbank builds the band layout and quantized weights for a spectrum of
// spectrumSize bins sampled at sampleRate.
func NewFilterbank(cfg config.FilterbankConfig, sampleRate, spectrumSize int) (*Filterbank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 || spectrumSize < 2 {
		return nil, fmt.Errorf("filterbank needs a positive sample rate and at least 2 bins, got %d Hz and %d bins",
			sampleRate, spectrumSize)
	}

	bands := cfg.NumChannels + 1
	fb := &Filterbank{
		NumChannels:            cfg.NumChannels,
		ChannelFrequencyStarts: make([]int16, bands),
		ChannelWeightStarts:    make([]int16, bands),
		ChannelWidths:          make([]int16, bands),
		work:                   make([]uint64, bands),
		output:                 make([]uint32, cfg.NumChannels),
	}

	centers := centerFrequencies(bands, cfg.LowerBandLimit, cfg.UpperBandLimit)

	hzPerSbin := 0.5 * float32(sampleRate) / (float32(spectrumSize) - 1)
	fb.StartIndex = int(1.5 + cfg.LowerBandLimit/hzPerSbin)

	actualStarts := make([]int, bands)
	actualWidths := make([]int, bands)

	freqStart := fb.StartIndex
	weightStart := 0
	needsZeros := false
	for ch := range bands {
		freq := freqStart
		for FreqToMel(float32(freq)*hzPerSbin) <= centers[ch] {
			freq++
		}

		width := freq - freqStart
		actualStarts[ch] = freqStart
		actualWidths[ch] = width

		if width == 0 {
			// An empty band points at a shared block of zero weights placed
			// in front of every other band.
			fb.ChannelFrequencyStarts[ch] = 0
			fb.ChannelWeightStarts[ch] = 0
			fb.ChannelWidths[ch] = filterbankChannelBlockSize
			if !needsZeros {
				needsZeros = true
				for j := range ch {
					fb.ChannelWeightStarts[j] += filterbankChannelBlockSize
				}
				weightStart += filterbankChannelBlockSize
			}
		} else {
			alignedStart := (freqStart / filterbankIndexAlignment) * filterbankIndexAlignment
			alignedWidth := freqStart - alignedStart + width
			paddedWidth := ((alignedWidth-1)/filterbankChannelBlockSize + 1) * filterbankChannelBlockSize

			fb.ChannelFrequencyStarts[ch] = int16(alignedStart)
			fb.ChannelWeightStarts[ch] = int16(weightStart)
			fb.ChannelWidths[ch] = int16(paddedWidth)
			weightStart += paddedWidth
		}
		freqStart = freq
	}

	fb.Weights = make([]int16, weightStart)
	fb.Unweights = make([]int16, weightStart)

	melLow := FreqToMel(cfg.LowerBandLimit)
	for ch := range bands {
		freq := actualStarts[ch]
		offset := freq - int(fb.ChannelFrequencyStarts[ch])
		start := int(fb.ChannelWeightStarts[ch])
		denom := melLow
		if ch > 0 {
			denom = centers[ch-1]
		}

		for j := 0; j < actualWidths[ch]; j, freq = j+1, freq+1 {
			weight := (centers[ch] - FreqToMel(float32(freq)*hzPerSbin)) / (centers[ch] - denom)
			fb.Weights[start+offset+j], fb.Unweights[start+offset+j] = quantizeWeight(weight)
		}
		fb.EndIndex = max(fb.EndIndex, freq)
	}

	if fb.EndIndex >= spectrumSize {
		return nil, fmt.Errorf("%w: end index %d, %d bins (%d channels, %.0f-%.0f Hz at %d Hz)",
			ErrEndIndexOutOfRange, fb.EndIndex, spectrumSize,
			cfg.NumChannels, cfg.LowerBandLimit, cfg.UpperBandLimit, sampleRate)
	}

	// Padded bands may read a few bins past EndIndex; those carry zero weight.
	energySize := spectrumSize
	for ch := range bands {
		energySize = max(energySize, int(fb.ChannelFrequencyStarts[ch])+int(fb.ChannelWidths[ch]))
	}
	fb.energy = make([]int32, energySize)

	return fb, nil
}

// ConvertFFTComplexToEnergy stores re*re + im*im for bins StartIndex up to
// EndIndex. The sum wraps as a 32-bit value, as it does for a full-scale bin.
func (fb *Filterbank) ConvertFFTComplexToEnergy(bins []Complex16) []int32 {
	for i := fb.StartIndex; i < fb.EndIndex; i++ {
		re := int32(bins[i].Real)
		im := int32(bins[i].Imag)
		fb.energy[i] = re*re + im*im
	}
	return fb.energy
}

// AccumulateChannels sweeps the bands once, carrying each band's unweighted
// sum into the next band's weighted sum.
func (fb *Filterbank) AccumulateChannels(energy []int32) {
	var weightAcc, unweightAcc uint64
	for ch := range fb.NumChannels + 1 {
		freqStart := int(fb.ChannelFrequencyStarts[ch])
		weightStart := int(fb.ChannelWeightStarts[ch])
		width := int(fb.ChannelWidths[ch])

		for j := range width {
			e := uint64(int64(energy[freqStart+j]))
			weightAcc += uint64(int64(fb.Weights[weightStart+j])) * e
			unweightAcc += uint64(int64(fb.Unweights[weightStart+j])) * e
		}

		fb.work[ch] = weightAcc
		weightAcc = unweightAcc
		unweightAcc = 0
	}
}

// Sqrt returns the square root of each channel's accumulated energy shifted
// down by scaleDownShift. The returned slice is reused by the next call.
func (fb *Filterbank) Sqrt(scaleDownShift int) []uint32 {
	for i := range fb.output {
		fb.output[i] = sqrt64(fb.work[i+1]) >> scaleDownShift
	}
	return fb.output
}

// Work exposes the raw per-band accumulators, including the leading band.
func (fb *Filterbank) Work() []uint64 {
	return fb.work
}

// Reset clears the accumulators.
func (fb *Filterbank) Reset() {
	clear(fb.work)
}

// sqrt32 is a rounded integer square root that saturates at 0xFFFF.
func sqrt32(num uint32) uint16 {
	if num == 0 {
		return 0
	}
	var res uint32
	maxBit := (32 - common.MostSignificantBit32(num)) | 1
	bit := uint32(1) << (31 - maxBit)
	for iterations := (31-maxBit)/2 + 1; iterations > 0; iterations-- {
		if num >= res+bit {
			num -= res + bit
			res = (res >> 1) + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	if num > res && res != 0xFFFF {
		res++
	}
	return uint16(res)
}

// sqrt64 is a rounded integer square root that saturates at 0xFFFFFFFF.
func sqrt64(num uint64) uint32 {
	if num>>32 == 0 {
		return uint32(sqrt32(uint32(num)))
	}
	var res uint64
	maxBit := (64 - common.MostSignificantBit64(num)) | 1
	bit := uint64(1) << (63 - maxBit)
	for iterations := (63-maxBit)/2 + 1; iterations > 0; iterations-- {
		if num >= res+bit {
			num -= res + bit
			res = (res >> 1) + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	if num > res && res != 0xFFFFFFFF {
		res++
	}
	return uint32(res)
}
