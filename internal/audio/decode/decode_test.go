package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/voicetyped/scribe/internal/audio"
)

func sine(n, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.4 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	return out
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWAVDecode(t *testing.T) {
	in := sine(16000, 16000)
	path := writeFile(t, "tone.wav", audio.EncodeWAV(in, 16000))

	w, err := NewWAV().Decode(context.Background(), path, "wav")
	if err != nil {
		t.Fatal(err)
	}
	if w.SampleRate != 16000 || w.Len() != len(in) {
		t.Fatalf("got %d samples at %d Hz", w.Len(), w.SampleRate)
	}
	for i := range in {
		if d := math.Abs(float64(w.Samples[i] - in[i])); d > 1.0/16000 {
			t.Fatalf("sample %d differs by %g", i, d)
		}
	}
}

func TestWAVDecodeResamples(t *testing.T) {
	path := writeFile(t, "tone8k.wav", audio.EncodeWAV(sine(8000, 8000), 8000))
	w, err := NewWAV().Decode(context.Background(), path, "wav")
	if err != nil {
		t.Fatal(err)
	}
	if w.SampleRate != 16000 || w.Len() != 16000 {
		t.Fatalf("got %d samples at %d Hz, want 16000 at 16000", w.Len(), w.SampleRate)
	}
}

func TestWAVDecodeRejectsGarbage(t *testing.T) {
	path := writeFile(t, "fake.wav", []byte("definitely not riff data, just text"))
	if _, err := NewWAV().Decode(context.Background(), path, "wav"); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("err = %v, want ErrNotWAV", err)
	}
}

// floatWAV builds a mono 32-bit IEEE float WAV (format tag 3).
func floatWAV(samples []float32, rate int) []byte {
	var buf bytes.Buffer
	dataSize := len(samples) * 4
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVEfmt ")
	for _, v := range []any{uint32(16), uint16(3), uint16(1), uint32(rate), uint32(rate * 4), uint16(4), uint16(32)} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

func TestWAVDecodeRejectsFloat(t *testing.T) {
	path := writeFile(t, "float.wav", floatWAV(sine(1600, 16000), 16000))
	if _, err := NewWAV().Decode(context.Background(), path, "wav"); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("err = %v, want ErrNotWAV", err)
	}
}

func TestAutoFallsBackOnFloatWAV(t *testing.T) {
	path := writeFile(t, "float.wav", floatWAV(sine(1600, 16000), 16000))
	var calls []string
	a := Auto{WAV: NewWAV(), Fallback: recordingDecoder{name: "ffmpeg", calls: &calls}}
	if _, err := a.Decode(context.Background(), path, "wav"); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(calls, []string{"ffmpeg"}) {
		t.Fatalf("calls = %v, want [ffmpeg]", calls)
	}
}

type recordingDecoder struct {
	name  string
	err   error
	calls *[]string
}

func (r recordingDecoder) Decode(context.Context, string, string) (audio.Waveform, error) {
	*r.calls = append(*r.calls, r.name)
	return audio.Waveform{SampleRate: 16000, Samples: []float32{1}}, r.err
}

func TestAutoRouting(t *testing.T) {
	tests := []struct {
		format  string
		wavErr  error
		noFall  bool
		want    []string
		wantErr error
	}{
		{format: "wav", want: []string{"wav"}},
		{format: ".WAV", want: []string{"wav"}},
		{format: "mp3", want: []string{"ffmpeg"}},
		{format: "wav", wavErr: ErrNotWAV, want: []string{"wav", "ffmpeg"}},
		{format: "wav", wavErr: ErrNotWAV, noFall: true, want: []string{"wav"}, wantErr: ErrNotWAV},
		{format: "flac", noFall: true, want: nil, wantErr: ErrUnsupported},
	}
	for _, tt := range tests {
		var calls []string
		a := Auto{WAV: recordingDecoder{name: "wav", err: tt.wavErr, calls: &calls}}
		if !tt.noFall {
			a.Fallback = recordingDecoder{name: "ffmpeg", calls: &calls}
		}
		_, err := a.Decode(context.Background(), "x", tt.format)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: err = %v, want %v", tt.format, err, tt.wantErr)
		}
		if !slices.Equal(calls, tt.want) {
			t.Errorf("%s: calls = %v, want %v", tt.format, calls, tt.want)
		}
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	f := NewFFmpeg(WithFFmpegBinary(filepath.Join(t.TempDir(), "no-such-ffmpeg")))
	if _, err := f.Decode(context.Background(), "in.mp3", "mp3"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestFFmpegDecode(t *testing.T) {
	if _, err := exec.LookPath(DefaultFFmpegBinary); err != nil {
		t.Skip("ffmpeg not installed")
	}
	path := writeFile(t, "tone.wav", audio.EncodeWAV(sine(32000, 16000), 16000))
	w, err := NewFFmpeg().Decode(context.Background(), path, "wav")
	if err != nil {
		t.Fatal(err)
	}
	if w.SampleRate != 16000 || w.Len() != 32000 {
		t.Fatalf("got %d samples at %d Hz", w.Len(), w.SampleRate)
	}
}

func TestReadAllLimit(t *testing.T) {
	if _, err := readAllLimit(bytesReader("12345"), 4); !errors.Is(err, ErrIOLimitReached) {
		t.Fatalf("err = %v", err)
	}
	got, err := readAllLimit(bytesReader("1234"), 4)
	if err != nil || string(got) != "1234" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func bytesReader(s string) *strings.Reader { return strings.NewReader(s) }
