package frontend

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Drain feeds samples through the frontend until every sample is consumed,
// calling emit for each completed frame. It stops at the first emit error.
// The Output passed to emit is only valid during the call.
func (f *Frontend) Drain(samples []int16, emit func(Output) error) (int, error) {
	frames := 0
	for len(samples) > 0 {
		out := f.ProcessSamples(samples)
		samples = samples[out.SamplesRead:]
		if !out.Ready() {
			continue
		}
		frames++
		if err := emit(out); err != nil {
			return frames, err
		}
	}
	return frames, nil
}

// Stream reads little-endian 16-bit PCM from r one step at a time and drains
// it through the frontend. ctx is checked between reads. A trailing odd byte
// is ignored. It returns the number of frames emitted.
func (f *Frontend) Stream(ctx context.Context, r io.Reader, emit func(Output) error) (int, error) {
	buf := make([]byte, 2*f.window.Step)
	samples := make([]int16, f.window.Step)

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		n, readErr := io.ReadFull(r, buf)
		count := n / 2
		for i := range count {
			samples[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
		}

		emitted, err := f.Drain(samples[:count], emit)
		frames += emitted
		if err != nil {
			return frames, err
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			return frames, nil
		default:
			return frames, fmt.Errorf("read pcm: %w", readErr)
		}
	}
}
