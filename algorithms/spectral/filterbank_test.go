package spectral

import (
	"errors"
	"slices"
	"testing"

	"github.com/RyanBlaney/sonido-frontend/frontend/config"
)

func filterbankConfig(channels int, lower, upper float32) config.FilterbankConfig {
	cfg := config.DefaultFilterbankConfig()
	cfg.NumChannels = channels
	cfg.LowerBandLimit = lower
	cfg.UpperBandLimit = upper
	return cfg
}

func TestNewFilterbankDefaultLayout(t *testing.T) {
	fb, err := NewFilterbank(config.DefaultFilterbankConfig(), 16000, 257)
	if err != nil {
		t.Fatalf("NewFilterbank: %v", err)
	}

	if fb.StartIndex != 5 || fb.EndIndex != 241 {
		t.Errorf("start/end = %d/%d, want 5/241", fb.StartIndex, fb.EndIndex)
	}
	if len(fb.Weights) != 316 || len(fb.Unweights) != 316 {
		t.Errorf("weight table length = %d, want 316", len(fb.Weights))
	}
	if got := fb.ChannelFrequencyStarts[:6]; !slices.Equal(got, []int16{4, 6, 8, 8, 10, 12}) {
		t.Errorf("frequency starts = %v", got)
	}
	if got := fb.ChannelWeightStarts[:6]; !slices.Equal(got, []int16{0, 4, 8, 12, 16, 20}) {
		t.Errorf("weight starts = %v", got)
	}
	for ch, w := range fb.ChannelWidths {
		if w%filterbankChannelBlockSize != 0 {
			t.Fatalf("band %d width %d not padded to a block", ch, w)
		}
	}

	// Band 0 starts at bin 5 but is aligned to bin 4, so its single weight
	// lands at offset 1 of its block.
	if fb.Weights[0] != 0 || fb.Weights[1] != 1377 || fb.Unweights[1] != 2719 {
		t.Errorf("band 0 weights = %v / %v", fb.Weights[:4], fb.Unweights[:4])
	}
	if fb.Weights[4] != 2852 || fb.Unweights[4] != 1244 || fb.Weights[5] != 321 || fb.Unweights[5] != 3775 {
		t.Errorf("band 1 weights = %v / %v", fb.Weights[4:8], fb.Unweights[4:8])
	}
	if fb.Weights[8] != 1971 || fb.Unweights[8] != 2125 {
		t.Errorf("band 2 weights = %v / %v", fb.Weights[8:12], fb.Unweights[8:12])
	}
}

func TestNewFilterbankWeightsComplement(t *testing.T) {
	fb, err := NewFilterbank(config.DefaultFilterbankConfig(), 16000, 257)
	if err != nil {
		t.Fatal(err)
	}
	for i := range fb.Weights {
		w, u := int(fb.Weights[i]), int(fb.Unweights[i])
		if w == 0 && u == 0 {
			continue
		}
		if s := w + u; s < 4095 || s > 4097 {
			t.Fatalf("weight %d: %d + %d = %d", i, w, u, s)
		}
	}
}

func TestNewFilterbankChannelCounts(t *testing.T) {
	tests := []struct {
		channels int
		weights  int
	}{
		{32, 308},
		{40, 316},
		{80, 424},
	}
	for _, tt := range tests {
		fb, err := NewFilterbank(filterbankConfig(tt.channels, 125, 7500), 16000, 257)
		if err != nil {
			t.Fatalf("%d channels: %v", tt.channels, err)
		}
		if len(fb.Weights) != tt.weights {
			t.Errorf("%d channels: %d weights, want %d", tt.channels, len(fb.Weights), tt.weights)
		}
		if len(fb.Sqrt(0)) != tt.channels {
			t.Errorf("%d channels: output length %d", tt.channels, len(fb.Sqrt(0)))
		}
	}
}

func TestNewFilterbankZeroWidthBands(t *testing.T) {
	fb, err := NewFilterbank(filterbankConfig(80, 125, 7500), 16000, 257)
	if err != nil {
		t.Fatal(err)
	}
	// Bands 0 and 5 are too narrow to hold a bin and share the zero block.
	for _, ch := range []int{0, 5} {
		if fb.ChannelFrequencyStarts[ch] != 0 || fb.ChannelWeightStarts[ch] != 0 || fb.ChannelWidths[ch] != 4 {
			t.Errorf("band %d = start %d, weights at %d, width %d", ch,
				fb.ChannelFrequencyStarts[ch], fb.ChannelWeightStarts[ch], fb.ChannelWidths[ch])
		}
	}
	if !slices.Equal(fb.Weights[:4], []int16{0, 0, 0, 0}) {
		t.Errorf("zero block = %v", fb.Weights[:4])
	}
	if got := fb.ChannelWeightStarts[1:5]; !slices.Equal(got, []int16{4, 8, 12, 16}) {
		t.Errorf("weight starts after zero block = %v", got)
	}
}

func TestNewFilterbankEndIndexOutOfRange(t *testing.T) {
	_, err := NewFilterbank(config.DefaultFilterbankConfig(), 8000, 257)
	if !errors.Is(err, ErrEndIndexOutOfRange) {
		t.Fatalf("expected ErrEndIndexOutOfRange, got %v", err)
	}
}

func TestNewFilterbankInvalidConfig(t *testing.T) {
	if _, err := NewFilterbank(filterbankConfig(40, 7500, 125), 16000, 257); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("inverted band limits: %v", err)
	}
	if _, err := NewFilterbank(config.DefaultFilterbankConfig(), 0, 257); err == nil {
		t.Error("zero sample rate accepted")
	}
}

// tinyFilterbank has one output channel made of two hand-written bands.
func tinyFilterbank() *Filterbank {
	return &Filterbank{
		NumChannels:            1,
		EndIndex:               4,
		ChannelFrequencyStarts: []int16{0, 2},
		ChannelWeightStarts:    []int16{0, 2},
		ChannelWidths:          []int16{2, 2},
		Weights:                []int16{4096, 2048, 1024, 0},
		Unweights:              []int16{0, 2048, 3072, 4096},
		work:                   make([]uint64, 2),
		energy:                 make([]int32, 4),
		output:                 make([]uint32, 1),
	}
}

func TestAccumulateChannels(t *testing.T) {
	fb := tinyFilterbank()
	fb.AccumulateChannels([]int32{1, 2, 3, 4})

	// band 0: 4096*1 + 2048*2, its unweighted 4096 carries into band 1.
	if !slices.Equal(fb.Work(), []uint64{8192, 4096 + 1024*3}) {
		t.Fatalf("work = %v", fb.Work())
	}
	if got := fb.Sqrt(0); got[0] != 85 {
		t.Errorf("sqrt(7168) = %d, want 85", got[0])
	}
	if got := fb.Sqrt(2); got[0] != 21 {
		t.Errorf("sqrt(7168)>>2 = %d, want 21", got[0])
	}

	fb.Reset()
	if !slices.Equal(fb.Work(), []uint64{0, 0}) {
		t.Errorf("reset left %v", fb.Work())
	}
}

func TestConvertFFTComplexToEnergy(t *testing.T) {
	fb := tinyFilterbank()
	fb.StartIndex = 1
	fb.EndIndex = 3
	bins := []Complex16{{3, 4}, {3, 4}, {-32768, -32768}, {1, 1}}

	energy := fb.ConvertFFTComplexToEnergy(bins)
	if energy[0] != 0 || energy[3] != 0 {
		t.Errorf("bins outside the band range were written: %v", energy)
	}
	if energy[1] != 25 {
		t.Errorf("energy[1] = %d, want 25", energy[1])
	}
	// 2 * 2^30 wraps to the most negative int32.
	if energy[2] != -1<<31 {
		t.Errorf("energy[2] = %d, want wrapped %d", energy[2], int32(-1<<31))
	}
}

func TestSqrt32(t *testing.T) {
	tests := []struct {
		in   uint32
		want uint16
	}{
		{0, 0}, {1, 1}, {2, 1}, {3, 2}, {4, 2}, {15, 4}, {17, 4},
		{100, 10}, {8192, 91}, {0xFFFE0001, 0xFFFF}, {0xFFFFFFFF, 0xFFFF},
	}
	for _, tt := range tests {
		if got := sqrt32(tt.in); got != tt.want {
			t.Errorf("sqrt32(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSqrt64(t *testing.T) {
	tests := []struct {
		in   uint64
		want uint32
	}{
		{25600, 160},
		{1 << 32, 1 << 16},
		{1 << 40, 1 << 20},
		{1_000_000_000_000, 1_000_000},
		{^uint64(0), 0xFFFFFFFF},
	}
	for _, tt := range tests {
		if got := sqrt64(tt.in); got != tt.want {
			t.Errorf("sqrt64(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFreqToMel(t *testing.T) {
	if FreqToMel(0) != 0 {
		t.Errorf("FreqToMel(0) = %v", FreqToMel(0))
	}
	// 700 Hz maps to 1127*ln 2.
	if got := FreqToMel(700); got < 781.17 || got > 781.18 {
		t.Errorf("FreqToMel(700) = %v", got)
	}
	if got := MelToFreq(FreqToMel(4000)); got < 3999.5 || got > 4000.5 {
		t.Errorf("round trip 4000 Hz = %v", got)
	}
}

// Full default tables: 40 channels, 125-7500 Hz, 16 kHz, 257 bins.
func TestNewFilterbankDefaultTables(t *testing.T) {
	fb, err := NewFilterbank(config.DefaultFilterbankConfig(), 16000, 257)
	if err != nil {
		t.Fatal(err)
	}
	for i := range defaultWeights {
		if fb.Weights[i] != defaultWeights[i] || fb.Unweights[i] != defaultUnweights[i] {
			t.Errorf("entry %d = %d/%d, want %d/%d",
				i, fb.Weights[i], fb.Unweights[i], defaultWeights[i], defaultUnweights[i])
		}
	}
}

func TestNewFilterbankTableChecksums(t *testing.T) {
	tests := []struct {
		channels           int
		weights, unweights int
	}{
		{32, 80737389, 80407443},
		{40, 81734421, 86930667},
		{80, 120153296, 120003376},
	}
	for _, tt := range tests {
		fb, err := NewFilterbank(filterbankConfig(tt.channels, 125, 7500), 16000, 257)
		if err != nil {
			t.Fatal(err)
		}
		var w, u int
		for i := range fb.Weights {
			w += (i + 1) * int(fb.Weights[i])
			u += (i + 1) * int(fb.Unweights[i])
		}
		if w != tt.weights || u != tt.unweights {
			t.Errorf("%d channels: checksums %d/%d, want %d/%d", tt.channels, w, u, tt.weights, tt.unweights)
		}
	}
}

var defaultWeights = []int16{
	0, 1377, 0, 0, 2852, 321, 0, 0, 1971, 0, 0, 0, 0, 3701, 1408, 0,
	0, 3281, 1124, 0, 0, 3124, 1087, 0, 0, 3201, 1272, 0, 0, 3488, 1655, 0,
	0, 3963, 2218, 513, 2943, 1314, 0, 0, 3817, 2258, 731, 0, 0, 3332, 1866, 430,
	3117, 1734, 377, 0, 0, 3141, 1833, 548, 3381, 2139, 918, 0, 0, 3814, 2632, 1470,
	325, 0, 0, 0, 0, 3294, 2185, 1092, 15, 0, 0, 0, 0, 3049, 2003, 972,
	4051, 3048, 2058, 1082, 118, 0, 0, 0, 0, 3263, 2324, 1398, 482, 0, 0, 0,
	0, 3674, 2782, 1899, 1028, 167, 0, 0, 3411, 2570, 1738, 915, 102, 0, 0, 0,
	0, 3393, 2598, 1810, 1032, 261, 0, 0, 3594, 2840, 2093, 1353, 621, 0, 0, 0,
	0, 3993, 3275, 2564, 1861, 1163, 473, 0, 0, 3885, 3207, 2536, 1870, 1211, 557, 0,
	0, 4006, 3364, 2727, 2096, 1471, 850, 235, 3721, 3117, 2517, 1922, 1331, 746, 165, 0,
	0, 3685, 3113, 2546, 1983, 1424, 870, 320, 3869, 3327, 2789, 2255, 1725, 1198, 676, 157,
	3737, 3226, 2717, 2213, 1711, 1214, 719, 228, 3836, 3352, 2870, 2392, 1917, 1445, 976, 510,
	46, 0, 0, 0, 0, 3682, 3225, 2770, 2319, 1870, 1424, 980, 539, 101, 0, 0,
	3762, 3329, 2898, 2471, 2045, 1622, 1202, 784, 368, 0, 0, 0, 0, 4050, 3639, 3231,
	2824, 2420, 2018, 1618, 1220, 825, 432, 40, 3747, 3360, 2975, 2592, 2211, 1832, 1455, 1079,
	706, 335, 0, 0, 4061, 3693, 3328, 2964, 2601, 2241, 1882, 1526, 1170, 817, 465, 115,
	3863, 3516, 3171, 2827, 2486, 2145, 1807, 1469, 1134, 800, 467, 136, 3903, 3575, 3248, 2923,
	2599, 2277, 1956, 1636, 1318, 1002, 686, 372, 60, 0, 0, 0, 0, 3844, 3534, 3226,
	2918, 2612, 2307, 2004, 1702, 1401, 1101, 802, 505, 209, 0, 0, 4010, 3716, 3423, 3132,
	2841, 2552, 2264, 1977, 1692, 1407, 1123, 841, 560, 279, 0, 0,
}

var defaultUnweights = []int16{
	0, 2719, 0, 0, 1244, 3775, 0, 0, 2125, 0, 0, 0, 0, 395, 2688, 0,
	0, 815, 2972, 0, 0, 972, 3009, 0, 0, 895, 2824, 0, 0, 608, 2441, 0,
	0, 133, 1878, 3583, 1153, 2782, 0, 0, 279, 1838, 3365, 0, 0, 764, 2230, 3666,
	979, 2362, 3719, 0, 0, 955, 2263, 3548, 715, 1957, 3178, 0, 0, 282, 1464, 2626,
	3771, 0, 0, 0, 0, 802, 1911, 3004, 4081, 0, 0, 0, 0, 1047, 2093, 3124,
	45, 1048, 2038, 3014, 3978, 0, 0, 0, 0, 833, 1772, 2698, 3614, 0, 0, 0,
	0, 422, 1314, 2197, 3068, 3929, 0, 0, 685, 1526, 2358, 3181, 3994, 0, 0, 0,
	0, 703, 1498, 2286, 3064, 3835, 0, 0, 502, 1256, 2003, 2743, 3475, 0, 0, 0,
	0, 103, 821, 1532, 2235, 2933, 3623, 0, 0, 211, 889, 1560, 2226, 2885, 3539, 0,
	0, 90, 732, 1369, 2000, 2625, 3246, 3861, 375, 979, 1579, 2174, 2765, 3350, 3931, 0,
	0, 411, 983, 1550, 2113, 2672, 3226, 3776, 227, 769, 1307, 1841, 2371, 2898, 3420, 3939,
	359, 870, 1379, 1883, 2385, 2882, 3377, 3868, 260, 744, 1226, 1704, 2179, 2651, 3120, 3586,
	4050, 0, 0, 0, 0, 414, 871, 1326, 1777, 2226, 2672, 3116, 3557, 3995, 0, 0,
	334, 767, 1198, 1625, 2051, 2474, 2894, 3312, 3728, 0, 0, 0, 0, 46, 457, 865,
	1272, 1676, 2078, 2478, 2876, 3271, 3664, 4056, 349, 736, 1121, 1504, 1885, 2264, 2641, 3017,
	3390, 3761, 0, 0, 35, 403, 768, 1132, 1495, 1855, 2214, 2570, 2926, 3279, 3631, 3981,
	233, 580, 925, 1269, 1610, 1951, 2289, 2627, 2962, 3296, 3629, 3960, 193, 521, 848, 1173,
	1497, 1819, 2140, 2460, 2778, 3094, 3410, 3724, 4036, 0, 0, 0, 0, 252, 562, 870,
	1178, 1484, 1789, 2092, 2394, 2695, 2995, 3294, 3591, 3887, 0, 0, 86, 380, 673, 964,
	1255, 1544, 1832, 2119, 2404, 2689, 2973, 3255, 3536, 3817, 4096, 0,
}
