package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	data := EncodeWAV([]float32{0, 0.5, -1, 1}, 16000)
	if len(data) != 44+8 {
		t.Fatalf("len = %d, want 52", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", data[:40])
	}
	if sr := binary.LittleEndian.Uint32(data[24:28]); sr != 16000 {
		t.Errorf("sample rate = %d", sr)
	}
	if got := int16(binary.LittleEndian.Uint16(data[48:50])); got != -32767 {
		t.Errorf("sample 2 = %d, want -32767", got)
	}
}

func TestResample(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(i) / float32(len(in))
	}
	out := Resample(in, 48000, 16000)
	if len(out) != 16000 {
		t.Fatalf("len = %d, want 16000", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("ramp not monotonic at %d", i)
		}
	}
	if same := Resample(in, 16000, 16000); &same[0] != &in[0] {
		t.Error("equal rates should return input unchanged")
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		offset, rate int
		want         string
	}{
		{0, 16000, "00:00:00.000"},
		{16000 * 65, 16000, "00:01:05.000"},
		{16, 16000, "00:00:00.001"},
		{16000 * 3725, 16000, "01:02:05.000"},
	}
	for _, tt := range tests {
		if got := Timestamp(tt.offset, tt.rate); got != tt.want {
			t.Errorf("Timestamp(%d, %d) = %q, want %q", tt.offset, tt.rate, got, tt.want)
		}
	}
}
