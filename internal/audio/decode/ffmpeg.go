package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/voicetyped/scribe/internal/audio"
)

const (
	DefaultFFmpegBinary   = "ffmpeg"
	DefaultCommandTimeout = 5 * time.Minute
	// DefaultMaxOutputBytes caps decoded PCM at four hours of 16 kHz float32.
	DefaultMaxOutputBytes = 4 * 3600 * audio.DefaultSampleRate * 4
)

type FFmpegOption func(*FFmpeg)

// FFmpeg decodes any container ffmpeg understands by piping raw float32 PCM
// from its stdout.
type FFmpeg struct {
	ffmpegBinary   string
	commandTimeout time.Duration
	sampleRate     int
	maxOutput      int
}

func WithFFmpegBinary(ffmpegBinary string) FFmpegOption {
	return func(f *FFmpeg) {
		if ffmpegBinary != "" {
			f.ffmpegBinary = ffmpegBinary
		}
	}
}

func WithCommandTimeout(timeout time.Duration) FFmpegOption {
	return func(f *FFmpeg) {
		if timeout > 0 {
			f.commandTimeout = timeout
		}
	}
}

func WithMaxOutputBytes(n int) FFmpegOption {
	return func(f *FFmpeg) {
		if n > 0 {
			f.maxOutput = n
		}
	}
}

func NewFFmpeg(options ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{
		ffmpegBinary:   DefaultFFmpegBinary,
		commandTimeout: DefaultCommandTimeout,
		sampleRate:     audio.DefaultSampleRate,
		maxOutput:      DefaultMaxOutputBytes,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *FFmpeg) args(path string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(f.sampleRate),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-",
	}
}

// Decode resamples the file to mono at the configured rate.
func (f *FFmpeg) Decode(ctx context.Context, path, _ string) (audio.Waveform, error) {
	ctx, cancel := context.WithTimeout(ctx, f.commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ffmpegBinary, f.args(path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return audio.Waveform{}, fmt.Errorf("starting ffmpeg: %w", err)
	}

	raw, err := readAllLimit(stdout, f.maxOutput)
	if err != nil {
		_, _ = io.Copy(io.Discard, stdout)
		_ = cmd.Wait()
		return audio.Waveform{}, fmt.Errorf("reading output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return audio.Waveform{}, fmt.Errorf("running ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return audio.Waveform{Samples: float32LE(raw), SampleRate: f.sampleRate}, nil
}

func float32LE(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

var _ Decoder = (*FFmpeg)(nil)
