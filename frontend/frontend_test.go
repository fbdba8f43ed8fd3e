package frontend

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/frontend/config"
	"github.com/RyanBlaney/sonido-frontend/logging"
)

func quietLogger() logging.Logger {
	return &logging.NoOpLogger{}
}

func newTestFrontend(t *testing.T, opts ...Option) *Frontend {
	t.Helper()
	f, err := New(config.DefaultConfig(), append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// testSignal is a 440 Hz tone over pseudo-random noise at 16 kHz.
func testSignal(n int) []int16 {
	s := make([]int16, n)
	seed := uint32(7)
	for i := range s {
		seed = seed*1664525 + 1013904223
		noise := float64(int32(seed>>16)&0xFFF) - 2048
		s[i] = int16(8000*math.Sin(2*math.Pi*440*float64(i)/16000) + noise)
	}
	return s
}

func collect(t *testing.T, f *Frontend, samples []int16, chunk int) [][]uint16 {
	t.Helper()
	var frames [][]uint16
	for len(samples) > 0 {
		n := min(chunk, len(samples))
		out := f.ProcessSamples(samples[:n])
		if out.SamplesRead == 0 {
			t.Fatal("no progress")
		}
		if out.Ready() {
			frames = append(frames, slices.Clone(out.Values))
		}
		samples = samples[out.SamplesRead:]
	}
	return frames
}

func TestNewDefaults(t *testing.T) {
	f := newTestFrontend(t)
	if f.NumChannels() != 40 || f.WindowSize() != 480 || f.StepSize() != 160 {
		t.Errorf("channels/window/step = %d/%d/%d", f.NumChannels(), f.WindowSize(), f.StepSize())
	}
	if f.FFTSize() != 512 || f.CorrectionBits() != 3 {
		t.Errorf("fft size %d, correction bits %d", f.FFTSize(), f.CorrectionBits())
	}
	if f.Backend() != "gonum" {
		t.Errorf("backend = %q", f.Backend())
	}
	if f.Config() != *config.DefaultConfig() {
		t.Errorf("config not retained")
	}
}

func TestNewNilConfigUsesDefaults(t *testing.T) {
	f, err := New(nil, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if f.NumChannels() != 40 {
		t.Errorf("NumChannels = %d", f.NumChannels())
	}
}

func TestNewFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"inverted band limits", func(c *config.Config) { c.Filterbank.UpperBandLimit = 100 }, config.ErrInvalidConfig},
		{"bands above nyquist", func(c *config.Config) { c.SampleRate = 8000 }, spectral.ErrEndIndexOutOfRange},
		{"unknown backend", func(c *config.Config) { c.Transform.Backend = "kiss" }, spectral.ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			f, err := New(cfg, WithLogger(quietLogger()))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if f != nil {
				t.Error("failed construction returned a frontend")
			}
		})
	}
}

func TestNewLogsConstruction(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New(nil, WithLogger(logging.NewWriterLogger(&buf, logging.DebugLevel))); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.Contains(got, "[DEBUG] Frontend constructed") || !strings.Contains(got, "component=frontend") {
		t.Errorf("unexpected log output %q", got)
	}

	buf.Reset()
	cfg := config.DefaultConfig()
	cfg.SampleRate = 8000
	if _, err := New(cfg, WithLogger(logging.NewWriterLogger(&buf, logging.DebugLevel))); err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(buf.String(), "[ERROR] Failed to construct frontend") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}

func TestProcessSamplesAwaitingFrame(t *testing.T) {
	f := newTestFrontend(t)
	out := f.ProcessSamples(make([]int16, 100))
	if out.Ready() || out.SamplesRead != 100 {
		t.Fatalf("out = %+v", out)
	}
	if f.BufferedSamples() != 100 {
		t.Errorf("buffered = %d", f.BufferedSamples())
	}

	out = f.ProcessSamples(make([]int16, 1000))
	if !out.Ready() || out.SamplesRead != 380 || len(out.Values) != 40 {
		t.Fatalf("completing frame: ready=%v read=%d len=%d", out.Ready(), out.SamplesRead, len(out.Values))
	}
	if f.BufferedSamples() != 320 {
		t.Errorf("overlap kept = %d, want 320", f.BufferedSamples())
	}
}

func TestProcessSamplesSilence(t *testing.T) {
	f := newTestFrontend(t)
	frames := collect(t, f, make([]int16, 1600), 160)
	if len(frames) != 8 {
		t.Fatalf("%d frames, want 8", len(frames))
	}
	for i, frame := range frames {
		for ch, v := range frame {
			if v != 0 {
				t.Fatalf("frame %d channel %d = %d, want 0", i, ch, v)
			}
		}
	}
}

func TestProcessSamplesSignal(t *testing.T) {
	f := newTestFrontend(t)
	frames := collect(t, f, testSignal(16000), 160)
	if len(frames) != 98 {
		t.Fatalf("%d frames, want 98", len(frames))
	}

	for i, frame := range frames[:3] {
		if slices.Max(frame) == 0 {
			t.Errorf("frame %d is silent: %v", i, frame)
		}
	}
}

func TestChunkingInvariant(t *testing.T) {
	samples := testSignal(4000)
	base := collect(t, newTestFrontend(t), samples, len(samples))

	for _, chunk := range []int{1, 7, 160, 333, 1000} {
		got := collect(t, newTestFrontend(t), samples, chunk)
		if len(got) != len(base) {
			t.Fatalf("chunk %d: %d frames, want %d", chunk, len(got), len(base))
		}
		for i := range got {
			if !slices.Equal(got[i], base[i]) {
				t.Fatalf("chunk %d: frame %d differs", chunk, i)
			}
		}
	}
}

func TestResetRestoresFreshState(t *testing.T) {
	samples := testSignal(3200)
	want := collect(t, newTestFrontend(t), samples, 160)

	f := newTestFrontend(t)
	collect(t, f, testSignal(1234), 100)
	f.Reset()
	f.Reset()

	if f.BufferedSamples() != 0 {
		t.Fatalf("buffered after reset = %d", f.BufferedSamples())
	}
	got := collect(t, f, samples, 160)
	if len(got) != len(want) {
		t.Fatalf("%d frames after reset, want %d", len(got), len(want))
	}
	for i := range got {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("frame %d after reset differs", i)
		}
	}

	s := f.Snapshot()
	f.Reset()
	f.Reset()
	twice := f.Snapshot()
	f.Reset()
	if !slices.Equal(twice.NoiseReduction.Estimate, f.Snapshot().NoiseReduction.Estimate) {
		t.Error("repeated reset changed state")
	}
	if slices.Equal(s.NoiseReduction.Estimate, twice.NoiseReduction.Estimate) {
		t.Error("reset did not clear the noise estimate")
	}
}

func TestGoDSPBackend(t *testing.T) {
	f := newTestFrontend(t, WithBackend(spectral.GoDSPBackend{}))
	if f.Backend() != "godsp" {
		t.Fatalf("backend = %q", f.Backend())
	}
	frames := collect(t, f, testSignal(1600), 160)
	if len(frames) != 8 || len(frames[0]) != 40 {
		t.Fatalf("%d frames", len(frames))
	}
}

func TestProcessSamplesDoesNotAllocate(t *testing.T) {
	f := newTestFrontend(t)
	samples := testSignal(480 + 160)
	f.ProcessSamples(samples[:480])
	step := samples[480:]

	allocs := testing.AllocsPerRun(50, func() {
		if out := f.ProcessSamples(step); !out.Ready() {
			t.Fatal("expected a frame per step")
		}
	})
	if allocs != 0 {
		t.Errorf("ProcessSamples allocated %.1f times per frame", allocs)
	}
}

func TestDrain(t *testing.T) {
	f := newTestFrontend(t)
	frames, err := f.Drain(testSignal(16000), func(out Output) error {
		if len(out.Values) != 40 {
			t.Fatalf("frame of %d values", len(out.Values))
		}
		return nil
	})
	if err != nil || frames != 98 {
		t.Fatalf("Drain = %d, %v", frames, err)
	}

	stop := errors.New("stop")
	f.Reset()
	frames, err = f.Drain(testSignal(16000), func(Output) error { return stop })
	if !errors.Is(err, stop) || frames != 1 {
		t.Errorf("Drain with failing emit = %d, %v", frames, err)
	}
}

func pcmBytes(samples []int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

func TestStream(t *testing.T) {
	samples := testSignal(16000)
	want := collect(t, newTestFrontend(t), samples, 160)

	f := newTestFrontend(t)
	var got [][]uint16
	data := append(pcmBytes(samples), 0x7F)
	frames, err := f.Stream(context.Background(), bytes.NewReader(data), func(out Output) error {
		got = append(got, slices.Clone(out.Values))
		return nil
	})
	if err != nil || frames != len(want) {
		t.Fatalf("Stream = %d, %v", frames, err)
	}
	for i := range got {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("frame %d differs from direct processing", i)
		}
	}
}

func TestStreamCanceled(t *testing.T) {
	f := newTestFrontend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frames, err := f.Stream(ctx, bytes.NewReader(pcmBytes(testSignal(1600))), func(Output) error { return nil })
	if !errors.Is(err, context.Canceled) || frames != 0 {
		t.Errorf("Stream = %d, %v", frames, err)
	}
}

func TestProcessFloat(t *testing.T) {
	samples := testSignal(640)
	ints := newTestFrontend(t)
	floatsFE := newTestFrontend(t)

	var want []uint16
	for rest := samples; len(rest) > 0; {
		out := ints.ProcessSamples(rest)
		if out.Ready() {
			want = slices.Clone(out.Values)
		}
		rest = rest[out.SamplesRead:]
	}

	var got ProcessOutput
	for rest := samples; len(rest) > 0; {
		out := floatsFE.ProcessFloat(rest)
		if len(out.Features) > 0 {
			got = out
		}
		rest = rest[out.SamplesRead:]
	}

	if len(got.Features) != len(want) {
		t.Fatalf("%d features, want %d", len(got.Features), len(want))
	}
	for i, v := range want {
		if got.Features[i] != float32(v)*Float32Scale {
			t.Fatalf("feature %d = %v, want %v", i, got.Features[i], float32(v)*Float32Scale)
		}
	}
}

func TestScaleFeatures(t *testing.T) {
	values := []uint16{0, 256, 65535}
	got := ScaleFeatures(nil, values)
	if !slices.Equal(got, []float32{0, 10, 2559.9609375}) {
		t.Errorf("ScaleFeatures = %v", got)
	}
	got64 := ScaleFeatures64(make([]float64, 8), values)
	if !slices.Equal(got64, []float64{0, 10, 2559.9609375}) {
		t.Errorf("ScaleFeatures64 = %v", got64)
	}
}

func TestSnapshot(t *testing.T) {
	f := newTestFrontend(t)
	collect(t, f, testSignal(800), 160)

	s := f.Snapshot()
	if s.Transform.FFTSize != 512 || s.Transform.Backend != "gonum" {
		t.Errorf("transform = %+v", s.Transform)
	}
	if len(s.Filterbank.Weights) != 316 || s.Filterbank.StartIndex != 5 || s.Filterbank.EndIndex != 241 {
		t.Errorf("filterbank start %d end %d weights %d",
			s.Filterbank.StartIndex, s.Filterbank.EndIndex, len(s.Filterbank.Weights))
	}
	if len(s.GainControl.LUT) != 125 || s.GainControl.SNRShift != 6 {
		t.Errorf("gain lut %d, shift %d", len(s.GainControl.LUT), s.GainControl.SNRShift)
	}
	if s.CorrectionBits != 3 || len(s.NoiseReduction.Estimate) != 40 || len(s.Window.Coefficients) != 480 {
		t.Errorf("snapshot sizes wrong")
	}

	estimate := slices.Clone(s.NoiseReduction.Estimate)
	s.Filterbank.Weights[0] = 1234
	collect(t, f, testSignal(1600), 160)
	if f.Snapshot().Filterbank.Weights[0] == 1234 {
		t.Error("snapshot aliases filterbank weights")
	}
	if !slices.Equal(s.NoiseReduction.Estimate, estimate) {
		t.Error("snapshot changed by later processing")
	}
}
