package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// writeWAVHeader writes a 44-byte canonical header for 16-bit mono PCM.
func writeWAVHeader(w io.Writer, sampleRate, dataSize int) error {
	fields := []any{
		[]byte("RIFF"), uint32(36 + dataSize), []byte("WAVE"),
		[]byte("fmt "), uint32(16), uint16(1), uint16(1),
		uint32(sampleRate), uint32(sampleRate * 2), uint16(2), uint16(16),
		[]byte("data"), uint32(dataSize),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// EncodeWAV renders float samples as a 16-bit mono PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(samples)*2)
	_ = writeWAVHeader(&buf, sampleRate, len(samples)*2)
	buf.Write(EncodePCM16(samples))
	return buf.Bytes()
}

// EncodePCM16 renders float samples as headerless little-endian 16-bit PCM.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(FloatToPCM16(s)))
	}
	return out
}

// FloatToPCM16 clamps a sample to [-1, 1] and scales it to int16.
func FloatToPCM16(s float32) int16 {
	v := math.Max(-1, math.Min(1, float64(s)))
	return int16(math.Round(v * math.MaxInt16))
}

// Resample converts samples between rates with linear interpolation.
func Resample(in []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx] + frac*(in[idx+1]-in[idx])
	}
	return out
}
